// Package auth provides authentication for the coven-connect admin API.
//
// # JWT Tokens
//
// Admin clients authenticate with HS256 JWTs signed with auth.jwt_secret.
// The secret must be at least MinSecretLength bytes. Tokens are minted with
// `coven-connect token`:
//
//	verifier, err := auth.NewJWTVerifier([]byte(secret))
//	token, err := verifier.Generate("ops@example.com", 24*time.Hour)
//
// # HTTP Middleware
//
// HTTPAuthMiddleware checks the Authorization: Bearer header, verifies the
// token and stores an AuthContext in the request context:
//
//	mux.Handle("/api/admin/", auth.HTTPAuthMiddleware(verifier, logger)(adminHandler))
//
// Handlers read the caller with FromContext.
//
// The public session endpoints are not authenticated; a company public key
// is the only credential a customer presents.
package auth
