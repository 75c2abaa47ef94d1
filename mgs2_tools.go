package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/qmuntal/gltf"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/mgs2_tools/config"
	"github.com/mogaika/mgs2_tools/pack"
	"github.com/mogaika/mgs2_tools/pack/cmdl"
	"github.com/mogaika/mgs2_tools/pack/ctxr"
	"github.com/mogaika/mgs2_tools/pack/evm"
	"github.com/mogaika/mgs2_tools/pack/kms"
	"github.com/mogaika/mgs2_tools/pack/tri"
	"github.com/mogaika/mgs2_tools/utils"
	"github.com/mogaika/mgs2_tools/utils/gltfutils"
	"github.com/mogaika/mgs2_tools/utils/imgutils"
)

type options struct {
	out       string
	format    string
	id        string
	index     int
	workers   int
	dump      bool
	yaml      bool
	gltf      bool
	roundtrip bool
}

func main() {
	var in, lookup, encoding, strcode string
	var verbose bool
	var o options
	flag.StringVar(&in, "i", "", "Input file (.tri .ctxr .dds .cmdl .kms .evm)")
	flag.StringVar(&o.out, "o", "", "Output file or directory, defaults to the input directory")
	flag.StringVar(&o.format, "format", "", "Image output format: "+strings.Join(imgutils.Formats, ", ")+". Atlases default to tga, ctxr to dds")
	flag.StringVar(&o.id, "id", "", "Atlas texture id or nice name to decode, all entries if empty")
	flag.IntVar(&o.index, "index", -1, "Atlas entry index to decode")
	flag.IntVar(&o.workers, "workers", 0, "Atlas decode workers, 0 - one per cpu")
	flag.BoolVar(&o.dump, "dump", false, "Dump decoded structure to stdout")
	flag.BoolVar(&o.yaml, "yaml", false, "Print decoded structure as yaml to stdout")
	flag.BoolVar(&o.gltf, "gltf", false, "Export models as glb")
	flag.BoolVar(&o.roundtrip, "roundtrip", false, "Encode the decoded file back and compare with the input")
	flag.StringVar(&lookup, "lookup", "", "Texture name lookup file")
	flag.StringVar(&encoding, "encoding", "", "Charmap of the lookup file, one of: "+strings.Join(config.ListEncodings(), ", "))
	flag.BoolVar(&verbose, "v", false, "Trace decoding to stderr")
	flag.StringVar(&strcode, "strcode", "", "Print the model header name hash of a name and exit")
	flag.Parse()

	if strcode != "" {
		fmt.Printf("%s: 0x%06x\n", strcode, utils.StrCode(strcode))
		return
	}

	if in == "" {
		fmt.Fprintf(os.Stderr, "Supported extensions: %s\n", strings.Join(pack.Extensions(), " "))
		flag.PrintDefaults()
		return
	}

	if encoding != "" {
		if err := config.SetEncoding(encoding); err != nil {
			log.Fatal(err)
		}
	}
	if lookup != "" {
		if err := config.LoadLookup(lookup); err != nil {
			log.Fatal(err)
		}
	}
	if verbose {
		trace := &utils.Logger{Writer: os.Stderr}
		tri.Trace = trace
		ctxr.Trace = trace
		cmdl.Trace = trace
		kms.Trace = trace
		evm.Trace = trace
	}
	if o.out == "" {
		o.out = filepath.Dir(in)
	}

	inst, err := pack.Load(in)
	if err != nil {
		log.Fatalf("[main] %+v", err)
	}
	if err := process(in, inst, &o); err != nil {
		log.Fatalf("[main] %s: %+v", in, err)
	}
}

func process(in string, inst interface{}, o *options) error {
	if o.dump {
		fmt.Print(utils.SDump(inst))
	}
	if o.yaml {
		out, err := yaml.Marshal(inst)
		if err != nil {
			return err
		}
		os.Stdout.Write(out)
	}
	if o.roundtrip {
		if err := roundtrip(in, inst); err != nil {
			return err
		}
	}

	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	switch v := inst.(type) {
	case *tri.TRI:
		if o.format == "" {
			o.format = "tga"
		}
		return saveAtlas(v, o)
	case *ctxr.CTXR:
		if o.format != "" {
			img, err := v.Image(0)
			if err != nil {
				return err
			}
			return imgutils.Save(outPath(o.out, base+"."+o.format), img)
		}
		raw, err := v.ConvertDDS().MarshalToBinary()
		if err != nil {
			return err
		}
		return writeFile(outPath(o.out, base+".dds"), raw)
	case *ctxr.DDS:
		c, err := ctxr.FromDDS(v, base)
		if err != nil {
			return err
		}
		raw, err := c.MarshalToBinary()
		if err != nil {
			return err
		}
		return writeFile(outPath(o.out, base+".ctxr"), raw)
	case *cmdl.CMDL:
		if !o.gltf {
			return nil
		}
		doc, err := v.ExportGLTF()
		if err != nil {
			return err
		}
		return saveGLTF(outPath(o.out, base+".glb"), doc)
	case *kms.KMS:
		if !o.gltf {
			return nil
		}
		model, err := v.Decode()
		if err != nil {
			return err
		}
		return saveGLTF(outPath(o.out, base+".glb"), model.ExportGLTF(config.Lookup()))
	case *evm.EVM:
		if !o.gltf {
			return nil
		}
		model, err := v.Decode()
		if err != nil {
			return err
		}
		return saveGLTF(outPath(o.out, base+".glb"), model.ExportGLTF(config.Lookup()))
	}
	return nil
}

func roundtrip(in string, inst interface{}) error {
	m, ok := inst.(pack.Marshaler)
	if !ok {
		return fmt.Errorf("%T cannot be encoded", inst)
	}
	orig, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	raw, err := m.MarshalToBinary()
	if err != nil {
		return err
	}
	if bytes.Equal(orig, raw) {
		log.Printf("[main] %s: roundtrip is byte exact (0x%x bytes)", in, len(raw))
		return nil
	}
	for i := 0; i < len(orig) && i < len(raw); i++ {
		if orig[i] != raw[i] {
			log.Printf("[main] %s: roundtrip differs at 0x%x (sizes 0x%x and 0x%x)", in, i, len(orig), len(raw))
			return nil
		}
	}
	log.Printf("[main] %s: roundtrip size differs: 0x%x and 0x%x", in, len(orig), len(raw))
	return nil
}

// outPath joins name to out unless out already names a file.
func outPath(out, name string) string {
	if filepath.Ext(out) != "" {
		return out
	}
	return filepath.Join(out, name)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return err
	}
	log.Printf("[main] Writing %s", path)
	return os.WriteFile(path, data, 0666)
}

func saveGLTF(path string, doc *gltf.Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	log.Printf("[main] Writing %s", path)
	return gltfutils.ExportBinary(f, doc)
}

func resolveTexID(id string) (uint32, error) {
	if v, err := strconv.ParseUint(id, 0, 32); err == nil {
		return uint32(v), nil
	}
	if v, ok := config.Lookup().ID(id); ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown texture '%s'", id)
}

func imageName(texID uint32, format string) string {
	name := config.Lookup().NiceName(texID)
	return strings.TrimSuffix(name, filepath.Ext(name)) + "." + format
}

func saveAtlas(t *tri.TRI, o *options) error {
	var single *tri.Image
	var err error
	switch {
	case o.id != "":
		var texID uint32
		if texID, err = resolveTexID(o.id); err != nil {
			return err
		}
		single, err = t.DecodeByID(texID)
	case o.index >= 0:
		single, err = t.DecodeEntry(o.index)
	default:
		failed := 0
		for _, r := range t.DecodeAll(o.workers) {
			if r.Err != nil {
				log.Printf("[main] Warning: entry %d (texture 0x%x): %v", r.Index, r.TexID, r.Err)
				failed++
				continue
			}
			if err := saveImage(r.Image, o); err != nil {
				return err
			}
		}
		log.Printf("[main] Decoded %d of %d atlas entries", len(t.Entries)-failed, len(t.Entries))
		return nil
	}
	if err != nil {
		return err
	}
	return saveImage(single, o)
}

func saveImage(img *tri.Image, o *options) error {
	data, err := imgutils.Encode(img, o.format)
	if err != nil {
		return err
	}
	path := o.out
	if filepath.Ext(path) == "" {
		path = filepath.Join(o.out, imageName(img.TexID, o.format))
	}
	return writeFile(path, data)
}
