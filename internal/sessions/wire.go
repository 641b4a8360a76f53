package sessions

import (
	"github.com/google/wire"

	"looped/internal/social"
)

var Set = wire.NewSet(
	NewManager,
	wire.Bind(new(StoreFactory), new(*social.Service)),
	wire.Bind(new(social.Sessions), new(*Manager)),
)
