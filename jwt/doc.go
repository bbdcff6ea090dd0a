// Package jwt issues and verifies the HS256 bearer tokens used by wmsauth.
//
// Two kinds of token share one claim set: access tokens carry scopes and a
// "user:<id>" subject, refresh tokens carry no scopes and a "refresh:<id>"
// subject. The type claim tells them apart and [Codec.DecodeKind] refuses
// to accept one kind where the other is expected.
//
// Every verification failure is reported as [ErrInvalidToken] so callers
// cannot leak which check rejected the token.
package jwt
