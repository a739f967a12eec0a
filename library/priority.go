package library

// Weights of the reservation priority score.
const (
	frequencyWeight   = 0.3
	punctualityWeight = 0.7
)

// PriorityScore ranks a member for reservation queues from their ledger history:
//
//	frequency*0.3 + punctuality*0.7
//
// frequency counts every transaction (active and returned). punctuality is the
// share of returned transactions that came back on or before their due date,
// and 0 while nothing has been returned. Higher scores are served first.
func PriorityScore(history []Transaction) float64 {
	if len(history) == 0 {
		return 0
	}
	var returned, onTime int
	for _, t := range history {
		if t.Status != StatusReturned {
			continue
		}
		returned++
		if t.ReturnedOnTime() {
			onTime++
		}
	}
	var punctuality float64
	if returned > 0 {
		punctuality = float64(onTime) / float64(returned)
	}
	return float64(len(history))*frequencyWeight + punctuality*punctualityWeight
}
