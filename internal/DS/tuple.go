package DS

// Tuple is an owned row of values. A Tuple never aliases memory held by a
// statement, so it stays valid while other statements on the same
// connection are stepped.
type Tuple []Value

// DupTuple copies every value of src into a new Tuple.
func DupTuple(src []Value) Tuple {
	if src == nil {
		return nil
	}
	t := make(Tuple, len(src))
	for i, v := range src {
		t[i] = v.Dup()
	}
	return t
}

// Release drops the values held by t. It is safe to call on a nil or
// already released tuple.
func (t *Tuple) Release() {
	if *t == nil {
		return
	}
	for i := range *t {
		(*t)[i] = Value{}
	}
	*t = nil
}

// Interfaces returns the tuple as driver values.
func (t Tuple) Interfaces() []interface{} {
	out := make([]interface{}, len(t))
	for i, v := range t {
		out[i] = v.Interface()
	}
	return out
}
