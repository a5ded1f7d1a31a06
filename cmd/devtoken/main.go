// Command devtoken mints bearer tokens for local development against the
// JWT_SECRET the server is configured with.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"hrdesk/internal/domain/auth"
	"hrdesk/internal/platform/config"
)

func main() {
	employeeID := flag.String("employee", "emp-dev", "employee id carried by the token")
	role := flag.String("role", auth.RoleEmployee, "role: employee, manager, hr or admin")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Environment == config.EnvProduction {
		fmt.Fprintln(os.Stderr, "refusing to mint tokens in production")
		os.Exit(1)
	}
	if !auth.ValidRole(*role) {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	token, err := auth.GenerateToken(cfg.JWTSecret, auth.Claims{EmployeeID: *employeeID, Role: *role}, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
