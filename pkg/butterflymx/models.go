package butterflymx

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/saturnines/butterflymx-go/pkg/errors"
)

// Building houses access points.
type Building struct {
	ID   string `mapstructure:"id" json:"id"`
	Name string `mapstructure:"name" json:"name"`
}

// AccessPoint is a door or gate a tenant can open.
type AccessPoint struct {
	ID           string   `mapstructure:"id" json:"id"`
	LegacyID     string   `mapstructure:"legacyId" json:"legacyId"`
	Name         string   `mapstructure:"name" json:"name"`
	Building     Building `mapstructure:"building" json:"building"`
	Capabilities []string `mapstructure:"capabilities" json:"capabilities"`
}

// Tenant is a residency of the signed-in user together with the access
// points it may open.
type Tenant struct {
	ID           string        `mapstructure:"id" json:"id"`
	Name         string        `mapstructure:"name" json:"name"`
	AccessPoints []AccessPoint `mapstructure:"-" json:"accessPoints"`
}

// tenantNode is a tenant as it appears on the wire, with access points
// wrapped in a connection.
type tenantNode struct {
	ID           string `mapstructure:"id"`
	Name         string `mapstructure:"name"`
	AccessPoints struct {
		Nodes []AccessPoint `mapstructure:"nodes"`
	} `mapstructure:"accessPoints"`
}

func (n tenantNode) tenant() Tenant {
	aps := n.AccessPoints.Nodes
	if aps == nil {
		aps = []AccessPoint{}
	}
	return Tenant{ID: n.ID, Name: n.Name, AccessPoints: aps}
}

// decode copies a decoded JSON value into out. Numbers are accepted where
// strings are expected, since legacy ids come back as either.
func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return errors.WrapError(err, errors.ErrHTTPResponse, fmt.Sprintf("decode %T", out))
	}
	return nil
}
