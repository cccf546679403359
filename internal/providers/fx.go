package providers

import (
	"github.com/smallbiznis/quotepilot/internal/billingprovider"
	"github.com/smallbiznis/quotepilot/internal/providers/email"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	billingprovider.Module,
	email.Module,
)
