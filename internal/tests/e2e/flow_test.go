package e2e

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDoctorJourney walks signup -> verify -> profile -> login -> refresh -> logout
func TestDoctorJourney(t *testing.T) {
	s := NewTestServer(t)

	verified := s.signupAndVerify("doctor", doctorFields())
	doctorID := verified.str("doctor_id")
	require.True(t, strings.HasPrefix(doctorID, "D"), "doctor id %q", doctorID)
	access := verified.str("access_token")
	require.NotEmpty(t, access)
	require.NotEmpty(t, verified.str("refresh_token"))

	account, _ := verified.Data["account"].(map[string]interface{})
	require.NotNil(t, account)
	assert.Equal(t, "pending_profile", account["status"])
	assert.Equal(t, "jane.doe@clinic.example", account["email"])
	assert.Equal(t, true, account["email_verified"])
	assert.NotContains(t, account, "password_hash")

	t.Run("session identity", func(t *testing.T) {
		me := s.Do(http.MethodGet, "/auth/me", nil, access)
		require.Equal(t, http.StatusOK, me.Status, me.Error)
		assert.Equal(t, doctorID, me.str("doctor_id"))
	})

	t.Run("complete profile activates the account", func(t *testing.T) {
		resp := s.Do(http.MethodPut, "/api/doctors/"+doctorID+"/profile", map[string]string{
			"full_name":      "Jane Doe",
			"gender":         "female",
			"specialization": "Cardiology",
			"license_number": "LIC-77",
		}, access)
		require.Equal(t, http.StatusOK, resp.Status, resp.Error)
		assert.Equal(t, "active", resp.str("status"))
	})

	t.Run("profile of another doctor is forbidden", func(t *testing.T) {
		resp := s.Do(http.MethodPut, "/api/doctors/D000000000000/profile", map[string]string{"full_name": "Someone Else"}, access)
		assert.Equal(t, http.StatusForbidden, resp.Status)
	})

	t.Run("login by email and by id", func(t *testing.T) {
		byEmail := s.Do(http.MethodPost, "/auth/doctor/login", map[string]string{
			"identifier": "JANE.DOE@clinic.example",
			"password":   "Secret123!",
		}, "")
		require.Equal(t, http.StatusOK, byEmail.Status, byEmail.Error)
		assert.Equal(t, doctorID, byEmail.str("doctor_id"))

		byID := s.Do(http.MethodPost, "/auth/doctor/login", map[string]string{
			"identifier": strings.ToLower(doctorID),
			"password":   "Secret123!",
		}, "")
		require.Equal(t, http.StatusOK, byID.Status, byID.Error)
	})

	t.Run("login failures look the same", func(t *testing.T) {
		wrongPassword := s.Do(http.MethodPost, "/auth/doctor/login", map[string]string{
			"identifier": "jane.doe@clinic.example",
			"password":   "nope-nope",
		}, "")
		unknown := s.Do(http.MethodPost, "/auth/doctor/login", map[string]string{
			"identifier": "ghost@clinic.example",
			"password":   "Secret123!",
		}, "")
		wrongRole := s.Do(http.MethodPost, "/auth/patient/login", map[string]string{
			"identifier": "jane.doe@clinic.example",
			"password":   "Secret123!",
		}, "")

		for _, resp := range []*Response{wrongPassword, unknown, wrongRole} {
			assert.Equal(t, http.StatusUnauthorized, resp.Status)
			assert.Equal(t, "Invalid credentials", resp.Error)
		}
	})

	t.Run("refresh then logout", func(t *testing.T) {
		refreshed := s.Do(http.MethodPost, "/auth/refresh", map[string]string{
			"refresh_token": verified.str("refresh_token"),
		}, "")
		require.Equal(t, http.StatusOK, refreshed.Status, refreshed.Error)
		newAccess := refreshed.str("access_token")
		require.NotEmpty(t, newAccess)

		out := s.Do(http.MethodPost, "/auth/logout", nil, newAccess)
		require.Equal(t, http.StatusOK, out.Status, out.Error)

		after := s.Do(http.MethodGet, "/auth/me", nil, newAccess)
		assert.Equal(t, http.StatusUnauthorized, after.Status)
		assert.Equal(t, "Token has been revoked", after.Error)

		// the earlier access token has its own jti and stays valid
		still := s.Do(http.MethodGet, "/auth/me", nil, access)
		assert.Equal(t, http.StatusOK, still.Status)
	})
}

func TestCrossRoleAccess(t *testing.T) {
	s := NewTestServer(t)

	doctor := s.signupAndVerify("doctor", doctorFields())
	patient := s.signupAndVerify("patient", patientFields())
	doctorID, patientID := doctor.str("doctor_id"), patient.str("patient_id")
	require.True(t, strings.HasPrefix(patientID, "P"), "patient id %q", patientID)

	tests := []struct {
		name   string
		token  string
		path   string
		status int
	}{
		{name: "doctor reads patient", token: doctor.str("access_token"), path: "/api/patients/" + patientID, status: http.StatusOK},
		{name: "patient reads self", token: patient.str("access_token"), path: "/api/patients/" + patientID, status: http.StatusOK},
		{name: "patient reads doctor", token: patient.str("access_token"), path: "/api/doctors/" + doctorID, status: http.StatusForbidden},
		{name: "refresh token is not an access token", token: patient.str("refresh_token"), path: "/auth/me", status: http.StatusUnauthorized},
		{name: "no token", path: "/auth/me", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.Do(http.MethodGet, tt.path, nil, tt.token)
			assert.Equal(t, tt.status, resp.Status, resp.Error)
		})
	}
}

func TestSignupFailures(t *testing.T) {
	s := NewTestServer(t)
	fields := doctorFields()

	t.Run("invalid role", func(t *testing.T) {
		resp := s.Do(http.MethodPost, "/auth/nurse/signup", fields, "")
		assert.Equal(t, http.StatusBadRequest, resp.Status)
		assert.Equal(t, "role", resp.Field)
	})

	t.Run("short mobile", func(t *testing.T) {
		bad := doctorFields()
		bad["mobile"] = "12345"
		resp := s.Do(http.MethodPost, "/auth/doctor/signup", bad, "")
		assert.Equal(t, http.StatusBadRequest, resp.Status)
		assert.Equal(t, "validation", resp.Code)
		assert.Equal(t, "mobile", resp.Field)
	})

	t.Run("otp without signup", func(t *testing.T) {
		resp := s.Do(http.MethodPost, "/auth/doctor/send-otp", map[string]string{"email": "nobody@clinic.example"}, "")
		assert.Equal(t, http.StatusBadRequest, resp.Status)
		assert.Equal(t, "not_found", resp.Code)
	})

	resp := s.Do(http.MethodPost, "/auth/doctor/signup", fields, "")
	require.Equal(t, http.StatusCreated, resp.Status, resp.Error)

	t.Run("purpose of the other role", func(t *testing.T) {
		resp := s.Do(http.MethodPost, "/auth/doctor/send-otp", map[string]string{
			"email":   fields["email"],
			"purpose": "patient_signup",
		}, "")
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	})

	sent := s.Do(http.MethodPost, "/auth/doctor/send-otp", map[string]string{"email": fields["email"]}, "")
	require.Equal(t, http.StatusOK, sent.Status, sent.Error)
	assert.Equal(t, true, sent.Data["delivered"])

	t.Run("otp routes of the other role", func(t *testing.T) {
		resend := s.Do(http.MethodPost, "/auth/patient/resend-otp", map[string]string{"email": fields["email"]}, "")
		assert.Equal(t, http.StatusBadRequest, resend.Status)

		verify := s.Do(http.MethodPost, "/auth/patient/verify-otp", map[string]string{
			"email": fields["email"], "otp": sent.str("otp"), "token": sent.str("token"),
		}, "")
		assert.Equal(t, http.StatusBadRequest, verify.Status)
		assert.Equal(t, "validation", verify.Code)
	})

	t.Run("resend inside the window is throttled", func(t *testing.T) {
		resp := s.Do(http.MethodPost, "/auth/doctor/resend-otp", map[string]string{"email": fields["email"]}, "")
		assert.Equal(t, http.StatusTooManyRequests, resp.Status)
		assert.Equal(t, "throttled", resp.Code)
		assert.Greater(t, resp.RetryAfter, int64(0))
	})

	t.Run("wrong code then lockout", func(t *testing.T) {
		wrong := wrongCode(sent.str("otp"))
		for i := 0; i < 3; i++ {
			resp := s.Do(http.MethodPost, "/auth/doctor/verify-otp", map[string]string{
				"email": fields["email"], "otp": wrong, "token": sent.str("token"),
			}, "")
			require.Equal(t, http.StatusBadRequest, resp.Status)
		}
		resp := s.Do(http.MethodPost, "/auth/doctor/verify-otp", map[string]string{
			"email": fields["email"], "otp": sent.str("otp"), "token": sent.str("token"),
		}, "")
		assert.Equal(t, http.StatusBadRequest, resp.Status)
		assert.Contains(t, strings.ToLower(resp.Error), "attempts")
	})
}

func wrongCode(code string) string {
	if strings.HasPrefix(code, "0") {
		return "1" + code[1:]
	}
	return "0" + code[1:]
}
