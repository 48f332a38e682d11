package docker

import (
	"testing"

	dCont "github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
)

func Test_NewDockerContainer(t *testing.T) {
	container := NewDockerContainer("test-db", "postgres:14", &dCont.Config{}, &dCont.HostConfig{})

	assert.Equal(t, "test-db", container.Label())
	assert.Equal(t, INIT, container.Status())
	assert.Equal(t, "", container.ID())
}

func Test_ContainerStatus_Transitions(t *testing.T) {
	tests := []struct {
		status    ContainerStatus
		canStop   bool
		canRemove bool
	}{
		{INIT, false, false},
		{PULLED, false, false},
		{CREATED, true, true},
		{UP, true, true},
		{CRASHED, true, true},
		{CLOSING, true, true},
		{DOWN, false, true},
		{DEAD, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			container := &dockerContainer{status: tt.status}
			assert.Equal(t, tt.canStop, container.canStop())
			assert.Equal(t, tt.canRemove, container.canRemove())
		})
	}
}
