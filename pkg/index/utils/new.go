package indexutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/index"
	"github.com/papercomputeco/playbook/pkg/index/linear"
	"github.com/papercomputeco/playbook/pkg/index/sqlitevec"
)

type NewIndexOpts struct {
	ProviderType string
	DBPath       string
	Dimensions   uint
	Logger       *zap.Logger
}

func NewIndex(o *NewIndexOpts) (index.Index, error) {
	switch o.ProviderType {
	case "linear":
		return linear.New(linear.Config{
			Dimensions: o.Dimensions,
		})
	case "sqlitevec":
		return sqlitevec.New(sqlitevec.Config{
			DBPath:     o.DBPath,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported index provider: %s", o.ProviderType)
	}
}
