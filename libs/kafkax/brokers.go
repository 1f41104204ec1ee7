package kafkax

import "strings"

// SplitBrokers turns a comma-separated broker list into its parts,
// dropping empties.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
