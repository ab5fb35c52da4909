package domain

// Maintenance features.
const (
	FeatureOrders  = "orders"
	FeatureTopUps  = "topups"
	FeatureGeneral = "general"
)

// Payment channels.
const (
	ChannelKPay = "kpay"
	ChannelWave = "wave"
)

var Channels = []string{ChannelKPay, ChannelWave}

func IsChannel(channel string) bool {
	for _, c := range Channels {
		if c == channel {
			return true
		}
	}
	return false
}

// PaymentAccount is where users send money for a channel.
type PaymentAccount struct {
	Number      string `json:"number"`
	AccountName string `json:"account_name"`
}

// Settings is the shop-wide singleton record.
type Settings struct {
	AuthorizedUsers []string         `json:"authorized_users"`
	AdminIDs        []string         `json:"admin_ids"`
	PriceOverrides  map[string]int64 `json:"price_overrides"`
	// Maintenance maps a feature to whether it is enabled.
	Maintenance map[string]bool           `json:"maintenance"`
	Payment     map[string]PaymentAccount `json:"payment"`
}

func DefaultSettings() Settings {
	return Settings{
		AuthorizedUsers: []string{},
		AdminIDs:        []string{},
		PriceOverrides:  map[string]int64{},
		Maintenance: map[string]bool{
			FeatureOrders:  true,
			FeatureTopUps:  true,
			FeatureGeneral: true,
		},
		Payment: map[string]PaymentAccount{},
	}
}

// Normalize fills nil collections.
func (s *Settings) Normalize() {
	d := DefaultSettings()
	if s.AuthorizedUsers == nil {
		s.AuthorizedUsers = d.AuthorizedUsers
	}
	if s.AdminIDs == nil {
		s.AdminIDs = d.AdminIDs
	}
	if s.PriceOverrides == nil {
		s.PriceOverrides = d.PriceOverrides
	}
	if s.Maintenance == nil {
		s.Maintenance = d.Maintenance
	}
	if s.Payment == nil {
		s.Payment = d.Payment
	}
}

func (s Settings) Clone() Settings {
	cp := Settings{
		AuthorizedUsers: append([]string{}, s.AuthorizedUsers...),
		AdminIDs:        append([]string{}, s.AdminIDs...),
		PriceOverrides:  make(map[string]int64, len(s.PriceOverrides)),
		Maintenance:     make(map[string]bool, len(s.Maintenance)),
		Payment:         make(map[string]PaymentAccount, len(s.Payment)),
	}
	for k, v := range s.PriceOverrides {
		cp.PriceOverrides[k] = v
	}
	for k, v := range s.Maintenance {
		cp.Maintenance[k] = v
	}
	for k, v := range s.Payment {
		cp.Payment[k] = v
	}
	return cp
}
