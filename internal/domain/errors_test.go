package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ClassificationParseError{Err: errors.New("no fence")}, KindClassificationParse},
		{&UnknownRoleError{Value: "architect"}, KindUnknownRole},
		{&UnknownToolError{Name: "x"}, KindUnknownTool},
		{&ToolInvocationError{Tool: "t", Err: errors.New("boom")}, KindToolInvocation},
		{&HumanGateError{Err: errors.New("eof")}, KindHumanGate},
		{&ModelError{Err: errors.New("503")}, KindModel},
		{ErrStepBudgetExhausted, KindStepBudgetExhausted},
		{fmt.Errorf("run: %w", &HumanGateError{Err: errors.New("eof")}), KindHumanGate},
		{context.Canceled, ""},
		{errors.New("plain"), ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ErrorKind(tc.err), "%v", tc.err)
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `unknown tool "deploy" (available: read_file, request_approval)`,
		(&UnknownToolError{Name: "deploy", Available: []string{"read_file", "request_approval"}}).Error())
	assert.Equal(t, "tool wit_get_work_item: 404", (&ToolInvocationError{Tool: "wit_get_work_item", Err: errors.New("404")}).Error())
	assert.Contains(t, (&UnknownRoleError{Value: "architect"}).Error(), `"architect"`)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("cause")
	assert.ErrorIs(t, &ToolInvocationError{Err: cause}, cause)
	assert.ErrorIs(t, &HumanGateError{Err: cause}, cause)
	assert.ErrorIs(t, &ModelError{Err: cause}, cause)
	assert.ErrorIs(t, &ClassificationParseError{Err: cause}, cause)
}
