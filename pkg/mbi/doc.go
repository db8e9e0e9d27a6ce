// Package mbi reads and writes Multiboot2 boot information, the structure a
// boot loader hands to the kernel.
//
// Layout:
//
//	[total_size(4)][reserved(4)][tag]...[end tag: type 0, size 8]
//
// Parse validates the preamble and walks every tag once, so a returned
// BootInformation never contains a record that overruns the buffer. Tags are
// decoded lazily by the typed accessors or by Get and All:
//
//	bi, err := mbi.Parse(buf)
//	if err != nil {
//	    return err
//	}
//	cmdline, err := bi.CommandLine()
//	mmap, err := mbi.Get[mbi.MemoryMap](bi)
//
// Decode errors of a single tag (a missing NUL, an unknown framebuffer type)
// are reported by that tag's accessor and do not affect the others.
//
// Builder produces boot information from tag values:
//
//	buf, err := mbi.NewBuilder().
//	    Push(mbi.NewCommandLine("root=/dev/sda1")).
//	    Push(&mbi.BasicMemoryInfo{Lower: 640, Upper: 65536}).
//	    Finish()
package mbi
