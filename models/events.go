package models

// Notification kinds dispatched to the notification topic.
const (
	NotifySellerOnboardingRequired = "seller_onboarding_required"
	NotifyBuyerItemPaused          = "buyer_item_paused"
	NotifyOrderPaid                = "order_paid"
	NotifyClaimPaid                = "claim_paid"
)

type NotificationEvent struct {
	EventType string            `json:"event_type"`
	Recipient string            `json:"recipient"`
	Payload   map[string]string `json:"payload"`
}

// SettlementEvent is published after a status transition so that
// out-of-band work (chapter transfers) can follow it.
type SettlementEvent struct {
	EventType        string `json:"event_type"` // order_paid, steward_claim_paid
	SessionID        string `json:"session_id"`
	OrderID          string `json:"order_id,omitempty"`
	ClaimID          string `json:"claim_id,omitempty"`
	ChapterID        string `json:"chapter_id,omitempty"`
	ChapterAccountID string `json:"chapter_account_id,omitempty"`
	DonationCents    int64  `json:"donation_cents,omitempty"`
	PaymentIntentID  string `json:"payment_intent_id,omitempty"`
	ProcessorEventID string `json:"processor_event_id"`
}

const (
	SettlementOrderPaid        = "order_paid"
	SettlementStewardClaimPaid = "steward_claim_paid"
)
