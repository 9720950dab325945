package common

// AuthorizationHeaderName is the HTTP header carrying bearer credentials.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the token type returned to clients and the prefix expected
// in the Authorization header ("Bearer <token>").
const BearerScheme = "Bearer"
