package domain

// Webhook topics this service subscribes to.
const (
	TopicAppUninstalled        = "app/uninstalled"
	TopicCustomersDataRequest  = "customers/data_request"
	TopicCustomersRedact       = "customers/redact"
	TopicShopRedact            = "shop/redact"
	TopicApplicationCharges    = "application_charges/update"
	TopicRecurringChargeUpdate = "recurring_application_charges/update"
)

// WebhookEvent is a verified inbound Shopify webhook. Payload holds the
// untouched raw body; verification happens before any parsing.
type WebhookEvent struct {
	Topic   string `json:"topic"`
	Shop    string `json:"shop"`
	Payload []byte `json:"payload"`
}
