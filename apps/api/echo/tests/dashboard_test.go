package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/tutorhub/backend/core/user"
	testutil "github.com/tutorhub/backend/tests"
)

func Test_dashboardApi_stats(t *testing.T) {
	app := setup(t)

	lastWeek := time.Now().UTC().AddDate(0, 0, -7)
	testutil.CreateUser(t, usrRepo, "Old Timer", "old@test.cd", "", nil, true, lastWeek)
	testutil.CreateUser(t, usrRepo, "De Activated", "gone@test.cd", "", nil, false, lastWeek)
	newcomer := testutil.CreateUser(t, usrRepo, "New Comer", "new@test.cd", "", nil, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/dashboard/stats", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/dashboard/stats", token: getToken(t, newcomer),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "stats", path: "/v1/dashboard/stats", token: getToken(t, admin), wantCode: http.StatusOK,
			wantData: marchallObj(t, user.Stats{TotalUsers: 4, ActiveUsers: 3, NewUsersToday: 2}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
