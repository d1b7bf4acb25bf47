package domain

type testOrder struct {
	Base
	Customer *Field[string]
	Total    *Field[int]
	Lines    *List[*testLine]
	Note     *Child[*testNote]
}

func newTestOrder() *testOrder {
	o := &testOrder{}
	o.Init(o, "test.Order", func() Object { return newTestOrder() })
	o.Customer = NewField(&o.Base, "customer", "")
	o.Total = NewField(&o.Base, "total", 0)
	o.Lines = NewList(&o.Base, "lines", newTestLine)
	o.Note = NewChild(&o.Base, "note", newTestNote)
	o.AddRule(Required(o.Customer))
	return o
}

type testLine struct {
	Base
	SKU   *Field[string]
	Qty   *Field[int]
	Parts *List[*testPart]
}

func newTestLine() *testLine {
	l := &testLine{}
	l.Init(l, "test.Line", func() Object { return newTestLine() })
	l.SKU = NewField(&l.Base, "sku", "")
	l.Qty = NewField(&l.Base, "qty", 0)
	l.Parts = NewList(&l.Base, "parts", newTestPart)
	return l
}

type testPart struct {
	Base
	Code *Field[string]
}

func newTestPart() *testPart {
	p := &testPart{}
	p.Init(p, "test.Part", func() Object { return newTestPart() })
	p.Code = NewField(&p.Base, "code", "")
	return p
}

type testNote struct {
	Base
	Text *Field[string]
}

func newTestNote() *testNote {
	n := &testNote{}
	n.Init(n, "test.Note", func() Object { return newTestNote() })
	n.Text = NewField(&n.Base, "text", "")
	return n
}

// fetchedOrder returns an order with two persisted lines, as a fetch would leave it.
func fetchedOrder() *testOrder {
	o := newTestOrder()
	o.Customer.Set("acme")
	for _, sku := range []string{"a", "b"} {
		line := o.Lines.AddNew()
		line.SKU.Set(sku)
		line.Qty.Set(1)
	}
	CompleteFetch(o)
	return o
}
