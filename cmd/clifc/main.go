// Command clifc compiles wasmir text modules to relocatable machine code
// for x86-64 or AArch64 (spec.md §6.1's external compile interface), and
// inspects the result: disassembly-style byte dumps, a JSON relocation/trap
// report, and a perf(1) symbol map.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/clifgen/wazevo-clif/diag"
	"github.com/clifgen/wazevo-clif/mach"
	"github.com/clifgen/wazevo-clif/wasmir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagISA        string
	flagCallConv   string
	flagVerbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clifc",
		Short: "Compile wasmir modules to relocatable machine code",
	}
	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to a clifc.toml configuration file")
	root.PersistentFlags().StringVar(&flagISA, "isa", "", "override the configured target ISA (amd64|arm64)")
	root.PersistentFlags().StringVar(&flagCallConv, "call-conv", "", "override the configured calling convention")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "emit pass-level trace logging to stderr")

	root.AddCommand(newCompileCmd(), newDisasmCmd(), newObjdumpCmd())
	return root
}

// newTrace builds the diag.Trace the pipeline reports through: a real
// logrus-backed trace when --verbose is set, NopTrace otherwise, matching
// spec.md §10's "logging never changes behavior, only observability" stance.
func newTrace() *diag.Trace {
	if !flagVerbose {
		return diag.NopTrace()
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{})
	return diag.NewTrace(log)
}

// loadAndCompile loads the configuration (layered with any --isa/--call-conv
// overrides) and compiles the wasmir source at path into a linked Object.
func loadAndCompile(path string) (*mach.Object, error) {
	cfg, err := LoadConfig(flagConfigPath)
	if err != nil {
		return nil, err
	}
	if flagISA != "" {
		cfg.ISA = flagISA
	}
	if flagCallConv != "" {
		cfg.CallConv = flagCallConv
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clifc: reading %s: %w", path, err)
	}
	mod, err := wasmir.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("clifc: parsing %s: %w", path, err)
	}
	return compileModule(cfg, mod, newTrace())
}

func newCompileCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "compile <module.wasmir>",
		Short: "Compile a wasmir module to a raw relocatable object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := loadAndCompile(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = args[0] + ".o"
			}
			return os.WriteFile(out, obj.Code, 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default: <module>.o)")
	return cmd
}

func newDisasmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm <module.wasmir>",
		Short: "Compile a module and print an annotated byte-level listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(flagConfigPath)
			if err != nil {
				return err
			}
			if flagISA != "" {
				cfg.ISA = flagISA
			}
			obj, err := loadAndCompile(args[0])
			if err != nil {
				return err
			}
			fmt.Println(mach.Disassemble(cfg.ISA, obj))
			return nil
		},
	}
	return cmd
}

// objdumpReport is the JSON shape `clifc objdump` emits: every field maps
// directly onto spec.md §6.2's relocatable-object contract, in a form a
// downstream linker or test harness can consume without importing this
// module's Go types.
type objdumpReport struct {
	FuncOffsets map[string]int              `json:"func_offsets"`
	Relocs      []mach.Reloc                `json:"relocs"`
	Traps       []mach.Trap                 `json:"traps"`
	CallSites   []mach.CallSite             `json:"call_sites"`
	SourceLocs  []mach.SourceLoc            `json:"source_locs"`
	Frames      map[string]mach.FrameLayout `json:"frames"`
}

func newObjdumpCmd() *cobra.Command {
	var perfmapPath string
	cmd := &cobra.Command{
		Use:   "objdump <module.wasmir>",
		Short: "Compile a module and print its relocation/trap/call-site metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := loadAndCompile(args[0])
			if err != nil {
				return err
			}
			report := objdumpReport{
				FuncOffsets: obj.FuncOffsets,
				Relocs:      obj.Relocs,
				Traps:       obj.Traps,
				CallSites:   obj.CallSites,
				SourceLocs:  obj.SourceLocs,
				Frames:      obj.FuncFrames,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if perfmapPath != "" {
				pm := mach.NewPerfmap(obj, 0)
				f, err := os.Create(perfmapPath)
				if err != nil {
					return fmt.Errorf("clifc: creating perf map %s: %w", perfmapPath, err)
				}
				defer f.Close()
				return pm.Flush(f)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&perfmapPath, "perfmap", "", "also write a perf(1) symbol map to this path")
	return cmd
}
