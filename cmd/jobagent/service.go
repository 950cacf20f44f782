package main

import (
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/jobagent/pkg/app"
)

// program adapts the jobagent runtime to the host service manager.
type program struct {
	params app.RunParams
	rt     *app.Runtime
}

// Start must not block.
func (p *program) Start(_ service.Service) error {
	rt, err := app.Start(p.params)
	if err != nil {
		return err
	}
	p.rt = rt
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.rt != nil {
		p.rt.Shutdown()
	}
	return nil
}

func serviceCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control jobagent as a system service",
	}

	newService := func() (service.Service, error) {
		params, err := g.params()
		if err != nil {
			return nil, err
		}
		if params.ConfigPath == "" {
			if params.ConfigPath, err = app.ResolveConfigPath(); err != nil {
				return nil, err
			}
		}
		// The service manager starts us from an arbitrary working directory.
		if params.ConfigPath, err = filepath.Abs(params.ConfigPath); err != nil {
			return nil, err
		}
		args := []string{"service", "run", "--config", params.ConfigPath, "--log-level", g.logLevel}
		if params.DataDir != "" {
			if params.DataDir, err = filepath.Abs(params.DataDir); err != nil {
				return nil, err
			}
			args = append(args, "--data-dir", params.DataDir)
		}
		return service.New(&program{params: params}, &service.Config{
			Name:        "jobagent",
			DisplayName: "jobagent",
			Description: "Finds job postings and scores them against stored resumes.",
			Arguments:   args,
		})
	}

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the jobagent service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService()
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "jobagent service: %s done\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := newService()
			if err != nil {
				return err
			}
			return s.Run()
		},
	})
	return cmd
}
