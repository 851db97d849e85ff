package cmdutils

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
)

// ExitWithErr prints err in red and exits with status 1. A multierror is printed one error per
// line.
func ExitWithErr(err error) {
	if merr, ok := err.(*multierror.Error); ok {
		ExitWithErrs(merr.Errors)
		return
	}
	fmt.Fprintln(color.Output, color.RedString("failed with error: %v", err.Error()))
	os.Exit(1)
}

func ExitWithErrs(errs []error) {
	if len(errs) == 0 {
		panic("no errors")
	}
	if len(errs) == 1 {
		ExitWithErr(errs[0])
		return
	}
	for _, err := range errs {
		fmt.Fprintln(color.Output, color.RedString("%v", err))
	}
	fmt.Fprintln(color.Output, color.RedString("failed with %d errors", len(errs)))
	os.Exit(1)
}
