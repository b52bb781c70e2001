package azproxy

// Ptr returns a pointer to v. Useful for the optional fields of SessionOptions:
//
//	opts := SessionOptions{Voice: Ptr("alloy")}
func Ptr[T any](v T) *T { return &v }
