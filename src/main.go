package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"syncopate/src/auth"
	"syncopate/src/handler/web"
	"syncopate/src/player"
	"syncopate/src/player/mpd"
	"syncopate/src/router"
	"syncopate/src/session"
	"syncopate/src/voice"
)

const confFile = "config.yaml"

var (
	build       = "%BUILD%"
	version     = "%VERSION%"
	versionDate = "%VERSION_DATE%"
)

type config struct {
	Address string `yaml:"bind"`

	Bot struct {
		ID     string `yaml:"id"`
		Name   string `yaml:"name"`
		Avatar string `yaml:"avatar"`
	} `yaml:"bot"`

	Auth struct {
		TokenURL     string `yaml:"token_url"`
		IdentityURL  string `yaml:"identity_url"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURI  string `yaml:"redirect_uri"`
	} `yaml:"auth"`

	MembershipURL string `yaml:"membership_url"`

	MPD []struct {
		Guild    string  `yaml:"guild"`
		Network  string  `yaml:"network"`
		Address  string  `yaml:"address"`
		Password *string `yaml:"password"`
	} `yaml:"mpd"`
}

func (conf *config) Validate() (errs []error) {
	if conf.Address == "" {
		errs = append(errs, fmt.Errorf("config: `bind` is required"))
	}
	if conf.Auth.TokenURL == "" || conf.Auth.IdentityURL == "" {
		errs = append(errs, fmt.Errorf("config: `auth.token_url` and `auth.identity_url` are required"))
	}
	if conf.MembershipURL == "" {
		errs = append(errs, fmt.Errorf("config: `membership_url` is required"))
	}
	if len(conf.MPD) == 0 {
		errs = append(errs, fmt.Errorf("config: no playback providers configured"))
	}
	return
}

func LoadConfig(filename string) (*config, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	d := yaml.NewDecoder(fd)
	d.KnownFields(true)
	var conf config
	if err := d.Decode(&conf); err != nil {
		return nil, err
	}

	return &conf, nil
}

func main() {
	defaultLogLevel := "warn"
	if build == "debug" {
		defaultLogLevel = "debug"
	}

	configFile := flag.String("conf", confFile, "Path to the configuration file")
	printVersion := flag.Bool("version", false, "Print version information and exit")
	logLevel := flag.String("log", defaultLogLevel, "Sets the log level. [debug, info, warn, error]")
	flag.Parse()

	if ll, err := log.ParseLevel(*logLevel); err != nil {
		log.Fatalf("Could not parse log level: %v", err)
	} else {
		log.SetLevel(ll)
	}
	log.SetReportCaller(true)

	if *printVersion {
		fmt.Printf("Version: %v (%v)\n", version, versionDate)
		fmt.Printf("Build: %v\n", build)
		return
	}

	log.Infof("Version: %v (%v)", version, build)
	config, err := LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	if errs := config.Validate(); len(errs) > 0 {
		log.Fatalf("Could not load config: %v", errs)
	}

	owner := player.Owner{ID: config.Bot.ID, Name: config.Bot.Name, Avatar: config.Bot.Avatar}
	rt := router.New(owner, providerFactory(config))
	defer rt.Close()

	authn := &auth.HTTPAuthenticator{
		TokenURL:     config.Auth.TokenURL,
		IdentityURL:  config.Auth.IdentityURL,
		ClientID:     config.Auth.ClientID,
		ClientSecret: config.Auth.ClientSecret,
		RedirectURI:  config.Auth.RedirectURI,
	}
	members := &voice.HTTPSource{BaseURL: config.MembershipURL}

	service := web.New(rt, authn, members, session.Config{})

	log.Infof("Now accepting companion connections on %v", config.Address)
	server := &http.Server{
		Addr:           config.Address,
		Handler:        service,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Fatalf("Error running server: %v", server.ListenAndServe())
}

func providerFactory(config *config) router.ProviderFactory {
	return func(ctx context.Context, guild, channel string) (player.Provider, error) {
		for _, mpdConf := range config.MPD {
			if mpdConf.Guild != guild {
				continue
			}
			network := mpdConf.Network
			if network == "" {
				network = "tcp"
			}
			return mpd.Connect(network, mpdConf.Address, mpdConf.Password)
		}
		return nil, fmt.Errorf("no playback provider configured for guild %q", guild)
	}
}
