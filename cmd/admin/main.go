package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"tilescape.dev/internal/persistence/tilecache"
	"tilescape.dev/internal/scene/content"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		}
	}
	statsCmd(os.Args[1:])
}

func statsCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	cache, err := tilecache.Open(filepath.Join(*dataDir, "tilecache.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer cache.Close()

	entries, bytes, err := cache.Stats()
	if err != nil {
		fmt.Fprintln(os.Stderr, "stats:", err)
		os.Exit(1)
	}
	fmt.Printf("entries: %d\ntotal bytes: %d\n", entries, bytes)
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	id := fs.String("id", "", "content id (d/x/y/z[@m])")
	_ = fs.Parse(args)

	if *id == "" {
		fmt.Fprintln(os.Stderr, "inspect: -id required")
		os.Exit(2)
	}

	cache, err := tilecache.Open(filepath.Join(*dataDir, "tilecache.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer cache.Close()

	payload, ok, err := cache.Get(*id)
	if err != nil {
		fmt.Fprintln(os.Stderr, "get:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "not cached:", *id)
		os.Exit(1)
	}
	c, err := content.Decode(payload)
	if err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	fmt.Printf("content_id: %s\nencoded bytes: %d\nis_leaf: %v\nsize_multiplier: %g\nempty_child_mask: %08b\n",
		*id, len(payload), c.IsLeaf, c.SizeMultiplier, c.EmptyChildMask)
	if c.Graphic != nil {
		fmt.Printf("graphic: %d vertices, %d triangles, %d mesh bytes\n",
			c.Graphic.Vertices, c.Graphic.Triangles, len(c.Graphic.Mesh))
	} else {
		fmt.Println("graphic: none")
	}
}
