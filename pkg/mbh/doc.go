// Package mbh reads and writes the Multiboot2 header a kernel image embeds so
// a boot loader can recognise it.
//
// Layout:
//
//	[magic(4)][architecture(4)][header_length(4)][checksum(4)][tag]...[end tag]
//
// Header tags carry a 16-bit type and 16-bit flags instead of the 32-bit type
// of boot information tags. A tag without the optional flag must be
// understood by the boot loader; see Header.UnsupportedRequired.
//
// Find scans the first SearchLimit bytes of an image at 8-byte steps:
//
//	h, off, err := mbh.Find(image)
//	entry, err := h.EntryAddress()
package mbh
