// Package registry lists release images known to an image registry through
// the Docker daemon.
//
// The RegistryAPI interface abstracts the Docker SDK so tests can inject a
// mock instead of talking to a running daemon.
//
// # Example
//
//	client, err := registry.NewClient()
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	images, err := client.ListImages(ctx, "registry.example.com:5000/app-grafana")
package registry
