package ledger

import "strings"

const (
	EventTransactionRecorded = "transaction.recorded"
	EventTransactionEdited   = "transaction.edited"
	EventTransactionDeleted  = "transaction.deleted"
)

// EventData flattens a transaction into the string map the event log stores.
func (t Transaction) EventData() map[string]string {
	data := map[string]string{
		"transaction_id": t.ID.String(),
		"pot_id":         t.PotID.String(),
		"user_id":        t.UserID.String(),
		"amount":         t.Amount.String(),
		"title":          t.Title,
	}
	if t.Category != "" {
		data["category"] = t.Category
	}
	if len(t.Splits) > 0 {
		parts := make([]string, 0, len(t.Splits))
		for _, id := range t.Splits.Members() {
			parts = append(parts, id.String()+"="+t.Splits[id].String())
		}
		data["splits"] = strings.Join(parts, ",")
	}
	return data
}
