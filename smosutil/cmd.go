/*
Copyright © 2024 the SMOS-Box authors.
This file is part of SMOS-Box.

SMOS-Box is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SMOS-Box is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SMOS-Box.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package smosutil holds the command-line interface of the SMOS toolbox
// and the batch conversion of products.
package smosutil

import (
	"context"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bcdev/smos-box-sub001/dddb"
	"github.com/bcdev/smos-box-sub001/dgg"
	"github.com/bcdev/smos-box-sub001/ee2netcdf"
)

// Version is the version of the toolbox.
const Version = "1.0.0"

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to the toolbox.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "DDDB",
			usage: `
              DDDB specifies a directory holding the data descriptor
              database. The database built into the program is used
              if it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of logged messages: one of
              debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "SourceProducts",
			usage: `
              SourceProducts lists the products to convert. Each entry is
              the path of a product header, data block or directory and
              may contain wildcards.`,
			shorthand:  "i",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{ee2netcdfCmd.Flags()},
		},
		{
			name: "TargetDirectory",
			usage: `
              TargetDirectory is the directory the NetCDF files are written
              to. It is created if it does not exist.`,
			shorthand:  "o",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{ee2netcdfCmd.Flags()},
		},
		{
			name: "Overwrite",
			usage: `
              Overwrite specifies whether existing target files are
              replaced. Products whose target file exists are skipped
              otherwise.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{ee2netcdfCmd.Flags()},
		},
		{
			name: "Region",
			usage: `
              Region restricts the export to the grid points inside a
              polygon given as WKT or GeoJSON, inline or in a file.
              Products that do not intersect the region are skipped.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{ee2netcdfCmd.Flags()},
		},
		{
			name: "Institution",
			usage: `
              Institution is written to the institution attribute of the
              NetCDF files.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{ee2netcdfCmd.Flags()},
		},
		{
			name: "Contact",
			usage: `
              Contact is written to the contact attribute of the NetCDF
              files.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{ee2netcdfCmd.Flags()},
		},
		{
			name: "Variables",
			usage: `
              Variables lists the names of the variables to export. All
              variables are exported if it is empty.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{ee2netcdfCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of products converted concurrently.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{ee2netcdfCmd.Flags()},
		},
		{
			name: "MetricsFile",
			usage: `
              MetricsFile is the path of a file the conversion metrics are
              written to in the Prometheus text format.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{ee2netcdfCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("SMOS")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(ee2netcdfCmd)
	Root.AddCommand(infoCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets up logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("smos: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("smos: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// registry returns the descriptor registry selected by the DDDB option.
func registry() *dddb.Registry {
	if dir := os.ExpandEnv(Cfg.GetString("DDDB")); dir != "" {
		return dddb.NewRegistry(os.DirFS(dir))
	}
	return dddb.NewRegistry(dddb.Resources())
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "smos",
	Short: "A toolbox for SMOS Earth Explorer products.",
	Long: `smos reads SMOS Earth Explorer products using the data descriptor
database and converts them to NetCDF files following the CF conventions.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SMOS_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of the toolbox.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("SMOS-Box v%s\n", Version)
	},
	DisableAutoGenTag: true,
}

// ee2netcdfCmd converts products to NetCDF.
var ee2netcdfCmd = &cobra.Command{
	Use:   "ee2netcdf [product...]",
	Short: "Convert products to NetCDF.",
	Long: `ee2netcdf converts SMOS browse, L1C science and L2 user products to
NetCDF files following the CF-1.6 conventions. Products are given by the
SourceProducts option and as arguments. Products that cannot be converted
are reported and skipped; the remaining products are still converted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := cast.ToStringSliceE(Cfg.Get("SourceProducts"))
		if err != nil {
			return fmt.Errorf("smos: reading 'SourceProducts': %v", err)
		}
		sources = expandStringSlice(append(sources, args...))
		if len(sources) == 0 {
			return fmt.Errorf("smos: no source products given")
		}
		variables, err := cast.ToStringSliceE(Cfg.Get("Variables"))
		if err != nil {
			return fmt.Errorf("smos: reading 'Variables': %v", err)
		}
		c := &Converter{
			Registry:  registry(),
			TargetDir: os.ExpandEnv(Cfg.GetString("TargetDirectory")),
			Overwrite: Cfg.GetBool("Overwrite"),
			Workers:   Cfg.GetInt("Workers"),
			Export: ee2netcdf.Config{
				Institution: Cfg.GetString("Institution"),
				Contact:     Cfg.GetString("Contact"),
				Variables:   variables,
			},
			Log: logrus.StandardLogger(),
		}
		if r := Cfg.GetString("Region"); r != "" {
			if c.Export.Region, err = dgg.ParseRegion(os.ExpandEnv(r)); err != nil {
				return err
			}
		}
		metricsFile := os.ExpandEnv(Cfg.GetString("MetricsFile"))
		var gatherer *prometheus.Registry
		if metricsFile != "" {
			gatherer = prometheus.NewRegistry()
			c.Metrics = NewMetrics(gatherer)
		}
		report, err := c.Convert(context.Background(), sources)
		if err != nil {
			return err
		}
		if gatherer != nil {
			if err := prometheus.WriteToTextfile(metricsFile, gatherer); err != nil {
				return fmt.Errorf("smos: writing metrics: %v", err)
			}
		}
		cmd.Printf("%d exported, %d skipped, %d failed\n", len(report.Exported), len(report.Skipped), len(report.Failed))
		return nil
	},
	DisableAutoGenTag: true,
}

// infoCmd prints a summary of products.
var infoCmd = &cobra.Command{
	Use:   "info product...",
	Short: "Describe products.",
	Long: `info prints the data format, export variant, dimensions and covered
area of each product given as argument.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := registry()
		for _, path := range expandStringSlice(args) {
			if err := Info(cmd.OutOrStdout(), reg, path); err != nil {
				return err
			}
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// expandStringSlice replaces environment variables in each element of s.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}
