package invoice

// LineItem is one billed line. quantity*unit_price is not checked against total.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Total       *float64 `json:"total"`
}

// InvoiceRecord is a lenient typed view over a Record. Fields the model left
// out, set to null or filled with the wrong JSON type come back as zero values.
type InvoiceRecord struct {
	InvoiceNumber   string     `json:"invoice_number"`
	Date            string     `json:"date"`
	VendorName      string     `json:"vendor_name"`
	VendorAddress   string     `json:"vendor_address,omitempty"`
	CustomerName    string     `json:"customer_name"`
	CustomerAddress string     `json:"customer_address,omitempty"`
	Items           []LineItem `json:"items"`
	Subtotal        *float64   `json:"subtotal"`
	Tax             *float64   `json:"tax"`
	Total           *float64   `json:"total"`
	PaymentTerms    string     `json:"payment_terms,omitempty"`
	DueDate         string     `json:"due_date,omitempty"`
	SourceFile      string     `json:"source_file"`
}

// Invoice returns the typed view of r.
func (r Record) Invoice() InvoiceRecord {
	inv := InvoiceRecord{
		InvoiceNumber:   r.String("invoice_number"),
		Date:            r.String("date"),
		VendorName:      r.String("vendor_name"),
		VendorAddress:   r.String("vendor_address"),
		CustomerName:    r.String("customer_name"),
		CustomerAddress: r.String("customer_address"),
		Subtotal:        r.numberPtr("subtotal"),
		Tax:             r.numberPtr("tax"),
		Total:           r.numberPtr("total"),
		PaymentTerms:    r.String("payment_terms"),
		DueDate:         r.String("due_date"),
		SourceFile:      r.SourceFile(),
	}
	raw, _ := r.Get("items")
	list, _ := raw.([]any)
	for _, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		desc, _ := obj["description"].(string)
		inv.Items = append(inv.Items, LineItem{
			Description: desc,
			Quantity:    numberPtr(obj["quantity"]),
			UnitPrice:   numberPtr(obj["unit_price"]),
			Total:       numberPtr(obj["total"]),
		})
	}
	return inv
}

func (r Record) numberPtr(key string) *float64 {
	v, _ := r.Get(key)
	return numberPtr(v)
}

func numberPtr(v any) *float64 {
	f, ok := Number(v)
	if !ok {
		return nil
	}
	return &f
}
