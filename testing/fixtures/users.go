// Package fixtures provides test data for unit and integration tests.
package fixtures

import (
	"fmt"

	"github.com/google/uuid"
)

// UserFixture represents a registration payload.
type UserFixture struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// TestUsers provides common account fixtures.
var TestUsers = struct {
	Commuter UserFixture
	Planner  UserFixture
}{
	Commuter: UserFixture{
		Email:    "commuter@example.com",
		Password: "hangang-2024",
		Name:     "김민수",
	},
	Planner: UserFixture{
		Email:    "planner@example.com",
		Password: "road-safety-99",
		Name:     "이서연",
	},
}

// NewRandomUser returns a fixture with a unique email.
func NewRandomUser() UserFixture {
	id := uuid.NewString()[:8]
	return UserFixture{
		Email:    fmt.Sprintf("user-%s@example.com", id),
		Password: "password-" + id,
		Name:     "테스트 " + id,
	}
}
