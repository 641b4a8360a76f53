package api

import (
	"time"

	"github.com/google/wire"

	"looped/config"
	"looped/pkg/jwt"
)

// ProvideJWT is a Wire provider function that creates the access token verifier
func ProvideJWT(cfg *config.Config) *jwt.JWT {
	return jwt.NewJWT(cfg.JWTKey(), time.Hour)
}

var Set = wire.NewSet(
	ProvideJWT,
	wire.Struct(new(Handlers), "*"),
	NewServer,
)
