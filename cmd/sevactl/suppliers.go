package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/sevasetu/internal/directory"
	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/logger"
	"github.com/MrSnakeDoc/sevasetu/internal/probe"
)

func (c *cli) suppliersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suppliers",
		Short: "Manage the supplier directory file",
	}
	cmd.AddCommand(c.suppliersUpdateCmd(), c.suppliersCheckCmd())
	return cmd
}

func (c *cli) suppliersUpdateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Write the complete Gujarat supplier dataset to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := directory.Seed()
			if err != nil {
				return err
			}
			// refuse to write a dataset the server would reject
			if _, err := directory.Map(f); err != nil {
				return fmt.Errorf("embedded dataset is invalid: %w", err)
			}
			if err := directory.Write(file, f); err != nil {
				return err
			}
			c.logger().Debug("suppliers written", logger.String("file", file))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✅ Updated %s\n", file)
			counts := f.Counts()
			for _, cat := range domain.Categories {
				fmt.Fprintf(out, "   %-12s %d suppliers\n", cat, counts[string(cat)])
			}
			fmt.Fprintf(out, "   %-12s %d suppliers\n", "total", f.Total())
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "suppliers.yaml", "directory file to write (.json or .yaml)")
	return cmd
}

type checkFlags struct {
	file        string
	probe       bool
	concurrency int
	rps         float64
}

func (c *cli) suppliersCheckCmd() *cobra.Command {
	var flags checkFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report how each supplier redirects and verify directory diversity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runCheck(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.file, "file", "", "directory file to check (default: embedded dataset)")
	cmd.Flags().BoolVar(&flags.probe, "probe", false, "also send HTTP requests to every supplier URL")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", probe.DefaultConcurrency, "parallel probes")
	cmd.Flags().Float64Var(&flags.rps, "rps", probe.DefaultRPS, "probe requests per second")
	return cmd
}

func (c *cli) runCheck(cmd *cobra.Command, flags checkFlags) error {
	loader := directory.NewLoader(flags.file)
	f, err := loader.Load()
	if err != nil {
		return err
	}
	mapped, err := directory.Map(f)
	if err != nil {
		return err
	}
	suppliers := make([]domain.Supplier, 0, len(mapped))
	for _, s := range mapped {
		suppliers = append(suppliers, *s)
	}
	c.logger().Debug("directory loaded", logger.String("source", loader.Path()), logger.Int("suppliers", len(suppliers)))

	out := cmd.OutOrStdout()
	rep := directory.Check(suppliers)
	printRedirections(out, rep)
	printKeySuppliers(out, rep)
	printDiversity(out, rep)

	ok := rep.OK()
	if flags.probe {
		probeOK, err := c.runProbe(cmd, suppliers, flags)
		if err != nil {
			return err
		}
		ok = ok && probeOK
	}

	fmt.Fprintln(out, "\n🎯 Final Results:")
	fmt.Fprintf(out, "   Portal Redirections: %s\n", passFail(rep.RedirectionsOK()))
	fmt.Fprintf(out, "   Supplier Diversity:  %s\n", passFail(rep.DiversityOK()))
	if !ok {
		fmt.Fprintln(out, "\n❌ Some checks failed. Please check the issues above.")
		return errCheckFailed
	}
	fmt.Fprintln(out, "\n🎉 All checks passed.")
	return nil
}

func printRedirections(out io.Writer, rep directory.Report) {
	fmt.Fprintln(out, "🧪 Portal redirections")
	var category domain.Category
	for _, r := range rep.Redirections {
		s := r.Supplier
		if s.Category != category {
			category = s.Category
			fmt.Fprintf(out, "\n📋 %s\n", strings.ToUpper(string(category)))
		}
		fmt.Fprintf(out, "  🔍 %s (%s)\n     Portal: %s\n", s.Name, s.ID, s.PortalURL)
		switch r.Kind {
		case directory.RedirectSpecific:
			fmt.Fprintf(out, "     Name Change: %s\n     ✅ Has specific name change URL\n", s.NameChangeURL)
		case directory.RedirectPortal:
			fmt.Fprintln(out, "     ℹ️  Uses main portal URL")
		case directory.RedirectManual:
			fmt.Fprintln(out, "     ⚠️  No name change URL (manual process)")
		case directory.RedirectBroken:
			fmt.Fprintf(out, "     ❌ Malformed name change URL: %q\n", s.NameChangeURL)
		}
	}

	fmt.Fprintln(out, "\n📊 Results:")
	fmt.Fprintf(out, "   Total Suppliers:       %d\n", rep.Total)
	fmt.Fprintf(out, "   Working Redirections:  %d\n", rep.Working)
	fmt.Fprintf(out, "   Manual Process:        %d\n", rep.Manual)
	fmt.Fprintf(out, "   Success Rate (online): %.1f%%\n", rep.SuccessRate()*100)
}

func printKeySuppliers(out io.Writer, rep directory.Report) {
	fmt.Fprintln(out, "\n🎯 Key Supplier URLs:")
	for _, s := range rep.KeyFound {
		fmt.Fprintf(out, "   ✅ %s: %s\n", s.Name, s.PortalURL)
		if s.NameChangeURL != "" {
			fmt.Fprintf(out, "      Name Change: %s\n", s.NameChangeURL)
		}
	}
	for _, id := range rep.KeyMissing {
		fmt.Fprintf(out, "   ❌ %s: Not found\n", id)
	}
}

func printDiversity(out io.Writer, rep directory.Report) {
	fmt.Fprintln(out, "\n🔍 Supplier diversity")
	fmt.Fprintf(out, "   Using GUVNL:      %d/%d\n", rep.GUVNLCount, rep.Total)
	fmt.Fprintf(out, "   Unique Domains:   %d\n", len(rep.UniqueDomains))
	fmt.Fprintf(out, "   Domain Diversity: %.1f%%\n", rep.DomainDiversity()*100)
	if rep.DiversityOK() {
		fmt.Fprintln(out, "   ✅ Good supplier diversity")
	} else {
		fmt.Fprintf(out, "   ⚠️  More than %.0f%% of suppliers use GUVNL\n", directory.MaxGUVNLShare*100)
	}
}

func (c *cli) runProbe(cmd *cobra.Command, suppliers []domain.Supplier, flags checkFlags) (bool, error) {
	targets := probeTargets(suppliers)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n🌐 Probing %d URLs (concurrency %d, %.1f req/s)\n", len(targets), flags.concurrency, flags.rps)

	results, err := probe.Run(cmd.Context(), targets, probe.Options{
		Concurrency: flags.concurrency,
		RPS:         flags.rps,
	})
	if err != nil {
		return false, err
	}

	failed := 0
	for _, r := range results {
		c.logger().Debug("probe",
			logger.String("supplier", r.SupplierID),
			logger.String("url", r.URL),
			logger.Int("status", r.Status),
			logger.Duration("duration", r.Duration))
		if r.OK() {
			continue
		}
		failed++
		reason := fmt.Sprintf("HTTP %d", r.Status)
		if r.Err != nil {
			reason = r.Err.Error()
		}
		fmt.Fprintf(out, "   ❌ %s %s %s: %s\n", r.SupplierID, r.Kind, r.URL, reason)
	}
	fmt.Fprintf(out, "   %d/%d URLs answered\n", len(results)-failed, len(results))
	return failed == 0, nil
}

// probeTargets lists each distinct supplier URL once, sorted for stable output.
func probeTargets(suppliers []domain.Supplier) []probe.Target {
	seen := make(map[string]bool)
	var targets []probe.Target
	for _, s := range suppliers {
		for _, t := range []probe.Target{
			{SupplierID: s.ID, Kind: string(domain.ActionPortal), URL: s.PortalURL},
			{SupplierID: s.ID, Kind: string(domain.ActionNameChange), URL: s.NameChangeURL},
			{SupplierID: s.ID, Kind: string(domain.ActionAddressChange), URL: s.AddressChangeURL},
			{SupplierID: s.ID, Kind: string(domain.ActionOfflineForm), URL: s.OfflineFormURL},
		} {
			if t.URL == "" || seen[t.URL] {
				continue
			}
			seen[t.URL] = true
			targets = append(targets, t)
		}
	}
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].SupplierID < targets[j].SupplierID })
	return targets
}

func passFail(ok bool) string {
	if ok {
		return "✅ PASS"
	}
	return "❌ FAIL"
}
