package guard

import (
	"testing"

	"github.com/learnsphere/platform-client/internal/core/domain"
)

func authenticated(roleID int) domain.Session {
	return domain.NewSession(&domain.User{ID: 1, RoleID: roleID}, false)
}

func anonymous() domain.Session {
	return domain.NewSession(nil, false)
}

func bootstrapping() domain.Session {
	return domain.NewSession(nil, true)
}

func TestProtected_WaitsWhileLoading(t *testing.T) {
	d := Protected(bootstrapping(), Requirement{RequireAdmin: true}, "/admin/users")
	if d.Action != ActionWait {
		t.Fatalf("loading session must wait, got %v", d.Action)
	}
	if d.Target != "" {
		t.Fatalf("no redirect may be decided while loading")
	}
}

func TestProtected_RedirectsToMatchingLogin(t *testing.T) {
	tests := []struct {
		name         string
		requireAdmin bool
		wantTarget   string
	}{
		{"admin route", true, AdminLoginPath},
		{"user route", false, LoginPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Protected(anonymous(), Requirement{RequireAdmin: tt.requireAdmin}, "/challenges/7")
			if d.Action != ActionRedirect {
				t.Fatalf("expected redirect, got %v", d.Action)
			}
			if d.Target != tt.wantTarget {
				t.Fatalf("expected redirect to %s, got %s", tt.wantTarget, d.Target)
			}
			if d.From != "/challenges/7" {
				t.Fatalf("attempted location must be preserved, got %q", d.From)
			}
		})
	}
}

func TestProtected_AdminRole(t *testing.T) {
	req := Requirement{RequireAdmin: true}

	d := Protected(authenticated(domain.RoleStudent), req, "/admin")
	if d.Action != ActionRedirect || d.Target != DashboardPath {
		t.Fatalf("student must be redirected to dashboard, got %+v", d)
	}
	if d.Reason != ReasonAdminRequired {
		t.Fatalf("unexpected reason %q", d.Reason)
	}

	d = Protected(authenticated(domain.RoleAdmin), req, "/admin")
	if d.Action != ActionAllow {
		t.Fatalf("admin must be allowed, got %+v", d)
	}
}

func TestProtected_AllowedRoles(t *testing.T) {
	req := Requirement{AllowedRoles: []int{domain.RoleAdmin, 3}}

	if d := Protected(authenticated(3), req, "/mentoring"); d.Action != ActionAllow {
		t.Fatalf("listed role must be allowed, got %+v", d)
	}

	d := Protected(authenticated(domain.RoleStudent), req, "/mentoring")
	if d.Action != ActionRedirect || d.Target != DashboardPath {
		t.Fatalf("unlisted role must be redirected, got %+v", d)
	}
	if d.Reason != ReasonInsufficientPermission {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestProtected_EmptyAllowedRolesPermitsAnyUser(t *testing.T) {
	if d := Protected(authenticated(domain.RoleStudent), Requirement{}, "/courses"); d.Action != ActionAllow {
		t.Fatalf("plain authenticated route must allow any role, got %+v", d)
	}
}

func TestPublic(t *testing.T) {
	if d := Public(bootstrapping()); d.Action != ActionWait {
		t.Fatalf("loading session must wait, got %v", d.Action)
	}
	if d := Public(anonymous()); d.Action != ActionAllow {
		t.Fatalf("anonymous visitor must see public routes, got %v", d.Action)
	}
	d := Public(authenticated(domain.RoleStudent))
	if d.Action != ActionRedirect || d.Target != DashboardPath {
		t.Fatalf("logged-in user must be sent to the dashboard, got %+v", d)
	}
}
