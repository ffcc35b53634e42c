package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// WaitForEnter prints message and blocks until a line is read from in or ctx
// is cancelled.
func WaitForEnter(ctx context.Context, in io.Reader, out io.Writer, message string) error {
	fmt.Fprintf(out, "%s ", Yellow(message))
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(in).ReadString('\n')
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("wait for operator: %w", err)
		}
		return nil
	}
}
