package utils

/*
Ptr returns a pointer to v.  Convenient for populating the optional wire
fields that are modelled as pointers.
*/
func Ptr[T any](v T) *T {
	return &v
}
