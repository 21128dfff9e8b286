// Package sshutil opens short-lived SSH sessions for providers that manage
// DNS data as files on a remote host.
//
// A [Session] bundles one SSH connection with an SFTP channel for file access
// and runs commands over SSH exec:
//
//	client, err := sshutil.NewClient(&sshutil.Config{
//		Host:    "dns-server.local",
//		User:    "admin",
//		KeyFile: "/run/secrets/dns_key",
//	})
//	if err != nil {
//		return err
//	}
//
//	sess, err := client.Open(ctx)
//	if err != nil {
//		return err
//	}
//	defer sess.Close()
//
//	data, err := sess.ReadFile("/etc/dnsmasq.d/dyndns.conf")
//	...
//	err = sess.Run(ctx, "systemctl reload dnsmasq")
//
// Updates are infrequent, so nothing is pooled: every Open dials a fresh
// connection and Close tears it down.
//
// Host keys are verified against KnownHostsFile when it is set. Without it,
// any host key is accepted and a warning is logged once per client.
package sshutil
