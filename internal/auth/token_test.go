package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", "citizenvoice", time.Hour)
	sess := newSession(time.Hour)

	token, err := issuer.Issue(sess)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.SessionID != sess.ID {
		t.Errorf("Expected session '%s', got '%s'", sess.ID, claims.SessionID)
	}
	if claims.Subject != sess.UserID.String() {
		t.Errorf("Expected subject '%s', got '%s'", sess.UserID, claims.Subject)
	}
}

func TestTokenRejections(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", "citizenvoice", time.Hour)
	sess := newSession(time.Hour)
	valid, _ := issuer.Issue(sess)

	otherSecret, _ := NewTokenIssuer("other-secret", "citizenvoice", time.Hour).Issue(sess)
	otherIssuer, _ := NewTokenIssuer("test-secret", "elsewhere", time.Hour).Issue(sess)

	expired := *sess
	expired.CreatedAt = time.Now().Add(-2 * time.Hour)
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	expiredToken, _ := issuer.Issue(&expired)

	noSession := *sess
	noSession.ID = ""
	noSessionToken, _ := issuer.Issue(&noSession)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SessionID: "x"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", otherSecret},
		{"wrong issuer", otherIssuer},
		{"expired", expiredToken},
		{"missing session", noSessionToken},
		{"alg none", none},
		{"garbage", "not.a.token"},
		{"tampered", valid + "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Parse(tt.token); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
