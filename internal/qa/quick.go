package qa

// QuickQuestion is a canned question offered by interactive front ends.
type QuickQuestion struct {
	Name     string `json:"name"`
	Question string `json:"question"`
}

// QuickQuestions are the shortcuts shown next to the chat prompt.
var QuickQuestions = []QuickQuestion{
	{Name: "summary", Question: "Please provide a summary of all invoices including total count, total amount, and key vendors."},
	{Name: "total", Question: "What is the total amount across all invoices?"},
	{Name: "dates", Question: "What is the date range of all invoices?"},
}

// LookupQuick returns the canned question called name.
func LookupQuick(name string) (string, bool) {
	for _, q := range QuickQuestions {
		if q.Name == name {
			return q.Question, true
		}
	}
	return "", false
}
