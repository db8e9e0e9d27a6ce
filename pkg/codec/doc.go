// Package codec provides the zero-copy engine for tagged binary structures
// such as Multiboot2 boot information and Multiboot2 headers.
//
// A tagged structure is a fixed preamble followed by back-to-back records.
// Every record starts with an 8-byte header and is padded to an 8-byte
// boundary:
//
//	[Kind(4)][Size(4)][fixed fields][tail][padding to 8]
//
// Fields:
//   - Kind: record discriminant; kind 0 with size 8 terminates a sequence
//   - Size: header plus payload in bytes (little-endian), padding excluded
//   - Tail: optional dynamically sized part (a string or an element array)
//
// Formats whose header packs more than a kind into the first word (the
// Multiboot2 header tags carry a 16-bit type and 16-bit flags) plug in their
// own HeaderDecoder and HeaderWriter.
//
// # Reading
//
// Reading is layered so that no byte is interpreted before the bounds that
// cover it have been checked:
//
//	v, err := codec.NewView(buf, 16)            // size and alignment gate
//	seq := codec.NewSequence(v, 8, v.Len(), dec) // lazy record walk
//	it := seq.Iter()
//	for it.Next() {
//	    rec := it.Record()                        // header + exactly Size bytes
//	    tag, err := codec.Cast[MyTag](rec)        // kind, size and tail checks
//	    ...
//	}
//	switch it.State() {
//	case codec.Terminated: // well-formed
//	case codec.Exhausted:  // no terminator
//	case codec.Failed:     // it.Err() says why
//	}
//
// Cast re-validates the record against the layout declared by the target
// type on every call and only then hands the type a Body. The element count
// of an array tail is computed inside that validated path; a Body cannot be
// constructed anywhere else.
//
// # Writing
//
// Builder accumulates Encoder values into an aligned buffer, computing each
// record's size and zero-filling padding. Finish appends the terminator and
// lets the format backfill its preamble. Push refuses the terminator kind,
// sizes that do not fit the size field, records below their registered
// minimum (WithReadBack) and encoders whose Validate method fails, so builder
// output always parses. Building with the mb2debug tag (or WithSelfCheck)
// decodes every written header again and replays the record through the
// sequence and cast validation to prove it.
//
// # Error Handling
//
// Every failure is a *ValidationError wrapping one sentinel cause:
//   - Buffer: ErrTooSmall, ErrMisaligned
//   - Record: ErrTruncatedHeader, ErrSizeBelowMinimum, ErrSizeExceedsBuffer,
//     ErrRecordOverrunsBuffer, ErrSizeOverflow, ErrInvalidTerminator
//   - Cast: ErrKindMismatch, ErrTailNotDivisible
//   - Content: ErrMissingNul, ErrInvalidUTF8
//   - Builder: ErrTailTooLarge, ErrAllocationFailed, ErrBuilderFinished
//
// Errors returned by an encoder's Validate method are passed through as-is.
//
// Nothing panics on malformed input.
//
// # Thread Safety
//
// Views, sequences and records are immutable and may be shared between
// goroutines as long as the underlying buffer is not modified. Iterators and
// builders are not safe for concurrent use.
package codec
