package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/mgs2_tools/pack/ctxr"
	"github.com/mogaika/mgs2_tools/utils"
	"github.com/mogaika/mgs2_tools/utils/imgutils"
)

func convert(inPath, outDir string, mipmaps int) (string, error) {
	ext := strings.ToLower(filepath.Ext(inPath))
	base := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))

	var c *ctxr.CTXR
	switch ext {
	case ".ctxr":
		data, err := os.ReadFile(inPath)
		if err != nil {
			return "", err
		}
		tex, err := ctxr.NewFromData(data)
		if err != nil {
			return "", err
		}
		raw, err := tex.ConvertDDS().MarshalToBinary()
		if err != nil {
			return "", err
		}
		out := filepath.Join(outDir, base+".dds")
		return out, os.WriteFile(out, raw, 0666)
	case ".dds":
		data, err := os.ReadFile(inPath)
		if err != nil {
			return "", err
		}
		d, err := ctxr.NewDDSFromData(data)
		if err != nil {
			return "", err
		}
		if c, err = ctxr.FromDDS(d, base); err != nil {
			return "", err
		}
	case ".png", ".tga", ".bmp", ".webp":
		img, err := imgutils.Open(inPath)
		if err != nil {
			return "", err
		}
		if c, err = ctxr.FromImage(img, base, mipmaps); err != nil {
			return "", err
		}
	default:
		return "", errors.Errorf("unsupported extension '%s'", ext)
	}

	raw, err := c.MarshalToBinary()
	if err != nil {
		return "", err
	}
	out := filepath.Join(outDir, base+".ctxr")
	return out, os.WriteFile(out, raw, 0666)
}

func main() {
	var inPath, outDir string
	var mipmaps int
	var verbose bool
	flag.StringVar(&inPath, "i", "", "File or folder with .ctxr, .dds or image files")
	flag.StringVar(&outDir, "o", "", "Output directory, defaults to the input folder")
	flag.IntVar(&mipmaps, "mipmaps", 1, "Mipmap levels generated for image inputs")
	flag.BoolVar(&verbose, "v", false, "Trace conversion to stderr")
	flag.Parse()

	if inPath == "" {
		log.Fatal("Provide path to file or folder. Use --help if you stuck.")
	}
	if verbose {
		ctxr.Trace = &utils.Logger{Writer: os.Stderr}
	}

	var files []string
	if st, err := os.Stat(inPath); err != nil {
		log.Fatal(err)
	} else if st.IsDir() {
		entries, err := os.ReadDir(inPath)
		if err != nil {
			log.Fatal(err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, filepath.Join(inPath, e.Name()))
			}
		}
		if outDir == "" {
			outDir = inPath
		}
	} else {
		files = []string{inPath}
		if outDir == "" {
			outDir = filepath.Dir(inPath)
		}
	}
	if err := os.MkdirAll(outDir, 0777); err != nil {
		log.Fatal(err)
	}

	failed := 0
	for _, f := range files {
		out, err := convert(f, outDir, mipmaps)
		if err != nil {
			log.Printf("[ctxrconv] Error converting %s: %v", f, err)
			failed++
			continue
		}
		log.Printf("[ctxrconv] %s -> %s", f, out)
	}
	if failed != 0 {
		log.Fatalf("[ctxrconv] %d of %d files failed", failed, len(files))
	}
}
