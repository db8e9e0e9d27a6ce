//go:build !mb2debug

package codec

const selfCheckDefault = false
