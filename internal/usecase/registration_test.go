package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
)

func TestRegistrationService_Register(t *testing.T) {
	h := newHarness(t)

	principal, err := h.registration.Register(context.Background(), RegistrationInput{
		Username: " carol ",
		Email:    "Carol@School.test",
		Password: "Blue!Harbor-2031",
		Role:     "teacher",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if principal.Username != "carol" || principal.Email != "carol@school.test" || principal.Role != domain.RoleTeacher {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if principal.PasswordHash != "" || !principal.Enabled {
		t.Fatalf("expected enabled principal without hash: %+v", principal)
	}

	stored := h.users.get(principal.ID)
	if ok, _ := h.hasher.Verify("Blue!Harbor-2031", stored.PasswordHash); !ok {
		t.Fatalf("expected stored hash to verify")
	}
	if len(h.events.registered) != 1 {
		t.Fatalf("expected registration event")
	}

	if _, err := h.authenticator.Authenticate(context.Background(), "carol", "Blue!Harbor-2031", "10.0.0.3"); err != nil {
		t.Fatalf("registered user should be able to log in: %v", err)
	}
}

func TestRegistrationService_UsernamesAreCaseSensitive(t *testing.T) {
	h := newHarness(t)
	alice := h.seedAlice(t)
	ctx := context.Background()

	upper, err := h.registration.Register(ctx, RegistrationInput{
		Username: "Alice",
		Email:    "alice.upper@school.test",
		Password: "Blue!Harbor-2031",
		Role:     "student",
	})
	if err != nil {
		t.Fatalf("expected a case-different username to register, got %v", err)
	}
	if upper.ID == alice.ID {
		t.Fatalf("expected a distinct account")
	}

	token, _, err := h.issuer.IssueAccessToken(alice, false)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := h.validator.ValidateAccess(ctx, token, "Alice"); !errors.Is(err, ErrSubjectMismatch) {
		t.Fatalf("expected alice's token to be rejected for Alice, got %v", err)
	}
}

func TestRegistrationService_Validation(t *testing.T) {
	h := newHarness(t)
	h.seedAlice(t)

	valid := RegistrationInput{Username: "dave", Email: "dave@school.test", Password: "Blue!Harbor-2031", Role: "STUDENT"}

	cases := []struct {
		name   string
		mutate func(*RegistrationInput)
		want   error
	}{
		{name: "short username", mutate: func(in *RegistrationInput) { in.Username = "ab" }, want: ErrInvalidUsername},
		{name: "bad characters", mutate: func(in *RegistrationInput) { in.Username = "da ve" }, want: ErrInvalidUsername},
		{name: "bad email", mutate: func(in *RegistrationInput) { in.Email = "not-an-email" }, want: ErrInvalidEmail},
		{name: "display name email", mutate: func(in *RegistrationInput) { in.Email = "Dave <dave@school.test>" }, want: ErrInvalidEmail},
		{name: "unknown role", mutate: func(in *RegistrationInput) { in.Role = "PRINCIPAL" }, want: ErrInvalidRole},
		{name: "weak password", mutate: func(in *RegistrationInput) { in.Password = "password" }, want: ErrWeakPassword},
		{name: "duplicate username", mutate: func(in *RegistrationInput) { in.Username = "alice" }, want: ErrUsernameTaken},
		{name: "duplicate email", mutate: func(in *RegistrationInput) { in.Email = "alice@school.test" }, want: ErrEmailTaken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := valid
			tc.mutate(&input)
			if _, err := h.registration.Register(context.Background(), input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
