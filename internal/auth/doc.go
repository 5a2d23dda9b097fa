// Package auth implements account registration and connection authentication.
//
// # Connection Authentication
//
// Gate verifies the first frame of every chat connection. The frame must be
// a login carrying username and password; anything else is rejected with a
// typed error frame and the connection is closed. Password checks run
// bcrypt against a dummy hash for unknown users so a miss costs the same
// as a mismatch.
//
// # Tokens
//
// TokenIssuer mints HS256 JWTs with a 24 hour lifetime. The token rides in
// the auth_success frame; RequireToken accepts it as a bearer token on
// authenticated HTTP endpoints, verifying signature, method, and expiry.
//
// # Registration
//
// RegisterHandler serves POST /api/register. Passwords must be at least 8
// characters and contain a letter and a digit.
package auth
