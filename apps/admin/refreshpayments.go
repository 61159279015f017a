package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) refreshPayments() error {
	n, err := cli.paymentSvc.RefreshStatuses(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%d payments marked overdue\n", n)
	return nil
}
