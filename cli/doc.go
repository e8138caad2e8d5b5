/*
Package cli defines plugin extension points for the wsclient command. This
allows to build extended websocket CLI clients that leverage the existing base
implementation.

# Extension Points

The following plugin “group” extension points are available (and also invoked in
this general order):

  - [SetupCLI]: for adding (sub) commands and CLI args to the (in [cobra]
    parlance) “root” command.
  - [CommandExamples]: for adding (more) examples to particular commands, namely
    the “probe” and “session” commands. These plugin functions are invoked
    after all [SetupCLI] plugins have been called, so that all commands have
    been registered by the time the examples should be extended with even more
    examples.
  - [BeforeCommand]: for checking and doing things just before the command runs.
  - [NewClient]: for creating a suitable websocket client, depending on the
    target URI and CLI args.

The plugin mechanism used in wsclient is compile-time only and allows
so-called plugins to register functions in what is termed “groups”. The
registered functions then can be iterated over, with control over the ordering
of plugins. For more details about the plugin mechanism, please refer to
[go-plugger].

[cobra]: https://github.com/spf13/cobra
[go-plugger]: https://github.com/thediveo/go-plugger
*/
package cli
