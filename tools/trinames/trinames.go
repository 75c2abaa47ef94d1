package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mogaika/mgs2_tools/config"
)

func main() {
	var lookupPath, encoding, query string
	flag.StringVar(&lookupPath, "i", "", "Texture name lookup file")
	flag.StringVar(&encoding, "encoding", "", "Charmap of the lookup file")
	flag.StringVar(&query, "q", "", "Texture id or name to resolve, prints the whole table as yaml if empty")
	flag.Parse()

	if lookupPath == "" {
		log.Fatal("Provide path to lookup file. Use --help if you stuck.")
	}
	if encoding != "" {
		if err := config.SetEncoding(encoding); err != nil {
			log.Fatal(err)
		}
	}
	if err := config.LoadLookup(lookupPath); err != nil {
		log.Fatal(err)
	}
	lookup := config.Lookup()

	if query == "" {
		out, err := yaml.Marshal(lookup.Entries())
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(out)
		return
	}

	if id, err := strconv.ParseUint(query, 0, 32); err == nil {
		fmt.Printf("%d (0x%x): %s\n", id, id, lookup.NiceName(uint32(id)))
	} else if id, ok := lookup.ID(query); ok {
		fmt.Printf("%s: %d (0x%x)\n", query, id, id)
	} else {
		log.Fatalf("[trinames] '%s' not found in %d entries", query, lookup.Len())
	}
}
