//go:build mb2debug

package codec

// Debug builds replay every pushed record through the cast validation.
const selfCheckDefault = true
