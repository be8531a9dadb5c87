// Package keycloaksession maintains a process-wide keycloak authentication
// session: one shared [Facade] owning the keycloak adapter, a state store
// mirroring the adapter's authentication fields, and derived read-only
// accessors for identity and role checks.
//
// Install the facade once, early in the program:
//
//	facade, err := keycloaksession.Install(ctx, keycloaksession.Options{
//		Config: adapter.Config{
//			ServerURL: "https://auth.example.org",
//			Realm:     "demo",
//			ClientID:  "app",
//		},
//		InitOptions: &adapter.InitOptions{
//			LoadStrategy: adapter.LoadStrategyCheckSSO,
//		},
//	})
//
// Every other component fetches the same handle:
//
//	facade, err := keycloaksession.Instance()
//	if facade.Authenticated() && facade.HasRealmRole("admin") {
//		...
//	}
//
// All protocol work (grants, token issuance, userinfo) is delegated to the
// wrapped adapter; this package only keeps the observable state consistent
// across init, login, logout, refresh and profile loads.
package keycloaksession
