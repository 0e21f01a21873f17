package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaybookValidate(t *testing.T) {
	valid := &Playbook{
		Name: "containment",
		Steps: []PlaybookStep{
			{Name: "isolate", Action: "isolate-host"},
		},
	}
	assert.NoError(t, valid.Validate())

	noName := &Playbook{Steps: []PlaybookStep{{Name: "s", Action: "a"}}}
	assert.Error(t, noName.Validate())

	noSteps := &Playbook{Name: "empty"}
	assert.Error(t, noSteps.Validate())

	unnamedStep := &Playbook{Name: "x", Steps: []PlaybookStep{{Action: "a"}}}
	assert.Error(t, unnamedStep.Validate())

	actionlessStep := &Playbook{Name: "x", Steps: []PlaybookStep{{Name: "s"}}}
	assert.Error(t, actionlessStep.Validate())
}
