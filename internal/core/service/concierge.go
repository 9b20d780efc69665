package service

import "strings"

// ConciergeName is the sender id used for automated replies.
const ConciergeName = "concierge"

type conciergeRule struct {
	keywords []string
	exact    bool
	reply    string
}

// Rules are checked in order; the first keyword hit wins.
var conciergeRules = []conciergeRule{
	{
		keywords: []string{"refund", "return"},
		reply:    "Refunds are handled through a dispute on the order. Open a dispute from the order page and an admin will review it; funds stay in escrow until it is resolved.",
	},
	{
		keywords: []string{"ship", "deliver", "track", "parcel"},
		reply:    "Sellers ship once payment is held in escrow. You will see the order move to shipped, and you can confirm delivery from the order page once it arrives.",
	},
	{
		keywords: []string{"offer", "negotiat", "discount", "counter"},
		reply:    "You can make an offer below the list price from the product page. The seller may accept, reject or counter, and an accepted offer can be used once at checkout.",
	},
	{
		keywords: []string{"payout", "withdraw", "balance"},
		reply:    "Sellers can request a payout from their available balance. Admins review requests and mark them paid with a transfer reference.",
	},
	{
		keywords: []string{"pay", "escrow", "charge"},
		reply:    "Payments are held in escrow and only released to the seller after you confirm delivery or an admin resolves a dispute.",
	},
	{
		keywords: []string{"hello", "hi", "hey"},
		exact:    true,
		reply:    "Hi! I'm the marketplace concierge. Ask me about shipping, payments, offers, refunds or payouts.",
	},
}

const conciergeFallback = "Thanks for reaching out. A member of our support team will reply in this thread shortly."

// ConciergeReply picks a canned answer by keyword.
func ConciergeReply(body string) string {
	words := strings.FieldsFunc(strings.ToLower(body), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	for _, rule := range conciergeRules {
		for _, kw := range rule.keywords {
			for _, w := range words {
				if w == kw || (!rule.exact && strings.HasPrefix(w, kw)) {
					return rule.reply
				}
			}
		}
	}
	return conciergeFallback
}
