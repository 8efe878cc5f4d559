package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jdziat/funcgate/pkg/callctx"
	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/security"
)

func newCallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "call NAME [PARAMS]",
		Short: "Call a function and print its envelope",
		Long: `Call a function in-process and print its JSON envelope.

PARAMS is a JSON array of positional arguments, a JSON object of named
arguments, or "-" to read either from stdin. Without PARAMS the function
is called with no arguments. The exit status is 1 when the envelope
carries an error.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readParams(cmd, args[1:])
			if err != nil {
				return err
			}
			params, err := core.ParseParams(body)
			if err != nil {
				return fmt.Errorf("invalid params: %w", err)
			}

			rt, err := a.start(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.stop(cmd.Context())

			ctx := callctx.WithCall(cmd.Context(), core.CallInfo{
				RequestID: uuid.NewString(),
				Function:  args[0],
				Transport: "cli",
			})
			env := rt.gateway.Call(ctx, args[0], params)

			b, err := json.Marshal(env)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			if !env.OK() {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}
}

func readParams(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if args[0] != "-" {
		return []byte(args[0]), nil
	}
	body, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), security.MaxRequestBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read params: %w", err)
	}
	if int64(len(body)) > security.MaxRequestBodySize {
		return nil, fmt.Errorf("params exceed %d bytes", security.MaxRequestBodySize)
	}
	return body, nil
}
