package mbi_test

import (
	"fmt"
	"log"

	"github.com/ssargent/mb2/pkg/mbi"
)

func ExampleParse() {
	buf, err := mbi.NewBuilder().
		Push(mbi.NewCommandLine("root=/dev/sda1")).
		Push(mbi.NewBootLoaderName("example loader")).
		Push(&mbi.BasicMemoryInfo{Lower: 640, Upper: 130048}).
		Finish()
	if err != nil {
		log.Fatal(err)
	}

	bi, err := mbi.Parse(buf)
	if err != nil {
		log.Fatal(err)
	}
	cmdline, _ := bi.CommandLine()
	loader, _ := bi.BootLoaderName()
	mem, _ := mbi.Get[mbi.BasicMemoryInfo](bi)

	fmt.Printf("total_size=%d tags=%d\n", bi.TotalSize(), bi.Count())
	fmt.Printf("cmdline=%q loader=%q\n", cmdline, loader)
	fmt.Printf("mem_lower=%dKiB mem_upper=%dKiB\n", mem.Lower, mem.Upper)
	// Output:
	// total_size=80 tags=3
	// cmdline="root=/dev/sda1" loader="example loader"
	// mem_lower=640KiB mem_upper=130048KiB
}
