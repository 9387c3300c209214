package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserUpdate_Flags(t *testing.T) {
	yes, no := true, false
	name := "Ann"

	tests := []struct {
		name        string
		upd         UserUpdate
		deactivates bool
		demotes     bool
		privileged  bool
	}{
		{"empty", UserUpdate{}, false, false, false},
		{"profile only", UserUpdate{FullName: &name}, false, false, false},
		{"deactivate", UserUpdate{IsActive: &no}, true, false, true},
		{"activate", UserUpdate{IsActive: &yes}, false, false, true},
		{"demote", UserUpdate{IsSuperuser: &no}, false, true, true},
		{"promote", UserUpdate{IsSuperuser: &yes}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.deactivates, tt.upd.Deactivates())
			assert.Equal(t, tt.demotes, tt.upd.Demotes())
			assert.Equal(t, tt.privileged, tt.upd.TouchesPrivileges())
		})
	}
}
