package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meera/souschef/internal/command"
)

func TestDecodeCallAllShapes(t *testing.T) {
	cases := []struct {
		name string
		args string
		want Call
	}{
		{
			name: "execute_robot_command",
			args: `{"language_instruction":"Open the left cabinet door","actions_to_execute":150,"use_angle_stop":true}`,
			want: ExecuteRobotCommand{LanguageInstruction: command.OpenCabinet, ActionsToExecute: 150, UseAngleStop: true},
		},
		{name: "get_robot_status", args: "", want: GetRobotStatus{}},
		{name: "mark_task_complete", args: `{"task_id":3}`, want: MarkTaskComplete{TaskID: 3}},
		{name: "get_current_plan", args: "{}", want: GetCurrentPlan{}},
		{name: "review_plan", args: `{"instructions":"strict"}`, want: ReviewPlan{Instructions: "strict"}},
	}
	for _, tc := range cases {
		got, err := DecodeCall(tc.name, tc.args)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got)
	}
}

func TestDecodeCallUpdateKitchenState(t *testing.T) {
	got, err := DecodeCall("update_kitchen_state", `{"state_updates":{"cabinet_open":true}}`)
	require.NoError(t, err)
	upd := got.(UpdateKitchenState)
	assert.True(t, upd.StateUpdates["cabinet_open"])
}

func TestDecodeCallUnknownName(t *testing.T) {
	_, err := DecodeCall("fold_laundry", "{}")
	assert.Error(t, err)
}

func TestPlanTaskAliasFields(t *testing.T) {
	got, err := DecodeCall("create_plan", `{"tasks":[
		{"title":"Open it","command":"Open the left cabinet door"},
		{"description":"check the counter"},
		{"step":"wave"},
		"plain string step"
	]}`)
	require.NoError(t, err)
	cp := got.(CreatePlan)
	require.Len(t, cp.Tasks, 4)
	assert.Equal(t, "Open it", cp.Tasks[0].Title)
	assert.Equal(t, command.OpenCabinet, cp.Tasks[0].Command)
	assert.Equal(t, "check the counter", cp.Tasks[1].Title)
	assert.Equal(t, "wave", cp.Tasks[2].Title)
	assert.Equal(t, "plain string step", cp.Tasks[3].Title)
}

func TestPlanTaskStateUpdates(t *testing.T) {
	got, err := DecodeCall("create_plan", `{"tasks":[
		{"title":"Open the left cabinet door","state_updates":{"cabinet_open":true}}
	]}`)
	require.NoError(t, err)
	cp := got.(CreatePlan)
	assert.True(t, cp.Tasks[0].StateUpdates["cabinet_open"])
}

func TestToolSurfaceDeclaresSevenShapes(t *testing.T) {
	surface := ToolSurface()
	require.Len(t, surface, 7)
	names := map[string]bool{}
	for _, tool := range surface {
		names[tool.Function.Name] = true
	}
	for _, want := range []string{
		"execute_robot_command", "get_robot_status", "update_kitchen_state",
		"mark_task_complete", "get_current_plan", "create_plan", "review_plan",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}
