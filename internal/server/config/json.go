package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/rtcauth/internal/flagx"
	"github.com/dmitrijs2005/rtcauth/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// strings such as "15m" and integer nanoseconds. Keys missing from the file
// keep their current value.
type JsonConfig struct {
	GRPCAddr    string `json:"grpc_addr"`
	HTTPAddr    string `json:"http_addr"`
	LogLevel    string `json:"log_level"`
	ServiceName string `json:"service_name"`

	IdentityBackend string `json:"identity_backend"`
	SessionBackend  string `json:"session_backend"`
	DatabaseDSN     string `json:"database_dsn"`
	SQLitePath      string `json:"sqlite_path"`
	RedisAddr       string `json:"redis_addr"`
	RedisPassword   string `json:"redis_password"`
	RedisDB         int    `json:"redis_db"`

	SessionTTL           timex.Duration `json:"session_ttl"`
	SessionSweepInterval timex.Duration `json:"session_sweep_interval"`
	StoreTimeout         timex.Duration `json:"store_timeout"`
	GatewayTimeout       timex.Duration `json:"gateway_timeout"`

	RTCAppID          string         `json:"rtc_app_id"`
	RTCAppKey         string         `json:"rtc_app_key"`
	RTCServerURL      string         `json:"rtc_server_url"`
	PublishGrantTTL   timex.Duration `json:"publish_grant_ttl"`
	SubscribeGrantTTL timex.Duration `json:"subscribe_grant_ttl"`
	SignatureSecret   string         `json:"signature_secret"`
	SignatureTTL      timex.Duration `json:"signature_ttl"`

	SMSProvider   string         `json:"sms_provider"`
	SMSAccessKey  string         `json:"sms_access_key"`
	SMSSecretKey  string         `json:"sms_secret_key"`
	SMSAccount    string         `json:"sms_account"`
	SMSSign       string         `json:"sms_sign"`
	SMSTemplateID string         `json:"sms_template_id"`
	SMSScene      string         `json:"sms_scene"`
	SMSCodeExpire timex.Duration `json:"sms_code_expire"`
	SMSTryCount   int            `json:"sms_try_count"`
	SMSCodeType   int            `json:"sms_code_type"`
	SMSStaticCode string         `json:"sms_static_code"`

	S3AccessKey    string         `json:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	UploadURLTTL   timex.Duration `json:"upload_url_ttl"`

	OTelEndpoint string `json:"otel_endpoint"`
}

// parseJson overlays the config file named in args (or $RTCAUTH_CONFIG)
// onto config. No file means no change.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}
	fromJson(c, config)
	return nil
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		GRPCAddr:             c.GRPCAddr,
		HTTPAddr:             c.HTTPAddr,
		LogLevel:             c.LogLevel,
		ServiceName:          c.ServiceName,
		IdentityBackend:      c.IdentityBackend,
		SessionBackend:       c.SessionBackend,
		DatabaseDSN:          c.DatabaseDSN,
		SQLitePath:           c.SQLitePath,
		RedisAddr:            c.RedisAddr,
		RedisPassword:        c.RedisPassword,
		RedisDB:              c.RedisDB,
		SessionTTL:           timex.Duration{Duration: c.SessionTTL},
		SessionSweepInterval: timex.Duration{Duration: c.SessionSweepInterval},
		StoreTimeout:         timex.Duration{Duration: c.StoreTimeout},
		GatewayTimeout:       timex.Duration{Duration: c.GatewayTimeout},
		RTCAppID:             c.RTCAppID,
		RTCAppKey:            c.RTCAppKey,
		RTCServerURL:         c.RTCServerURL,
		PublishGrantTTL:      timex.Duration{Duration: c.PublishGrantTTL},
		SubscribeGrantTTL:    timex.Duration{Duration: c.SubscribeGrantTTL},
		SignatureSecret:      c.SignatureSecret,
		SignatureTTL:         timex.Duration{Duration: c.SignatureTTL},
		SMSProvider:          c.SMSProvider,
		SMSAccessKey:         c.SMSAccessKey,
		SMSSecretKey:         c.SMSSecretKey,
		SMSAccount:           c.SMSAccount,
		SMSSign:              c.SMSSign,
		SMSTemplateID:        c.SMSTemplateID,
		SMSScene:             c.SMSScene,
		SMSCodeExpire:        timex.Duration{Duration: c.SMSCodeExpire},
		SMSTryCount:          c.SMSTryCount,
		SMSCodeType:          c.SMSCodeType,
		SMSStaticCode:        c.SMSStaticCode,
		S3AccessKey:          c.S3AccessKey,
		S3SecretKey:          c.S3SecretKey,
		S3Bucket:             c.S3Bucket,
		S3Region:             c.S3Region,
		S3BaseEndpoint:       c.S3BaseEndpoint,
		UploadURLTTL:         timex.Duration{Duration: c.UploadURLTTL},
		OTelEndpoint:         c.OTelEndpoint,
	}
}

func fromJson(j *JsonConfig, c *Config) {
	c.GRPCAddr = j.GRPCAddr
	c.HTTPAddr = j.HTTPAddr
	c.LogLevel = j.LogLevel
	c.ServiceName = j.ServiceName
	c.IdentityBackend = j.IdentityBackend
	c.SessionBackend = j.SessionBackend
	c.DatabaseDSN = j.DatabaseDSN
	c.SQLitePath = j.SQLitePath
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.SessionTTL = j.SessionTTL.Duration
	c.SessionSweepInterval = j.SessionSweepInterval.Duration
	c.StoreTimeout = j.StoreTimeout.Duration
	c.GatewayTimeout = j.GatewayTimeout.Duration
	c.RTCAppID = j.RTCAppID
	c.RTCAppKey = j.RTCAppKey
	c.RTCServerURL = j.RTCServerURL
	c.PublishGrantTTL = j.PublishGrantTTL.Duration
	c.SubscribeGrantTTL = j.SubscribeGrantTTL.Duration
	c.SignatureSecret = j.SignatureSecret
	c.SignatureTTL = j.SignatureTTL.Duration
	c.SMSProvider = j.SMSProvider
	c.SMSAccessKey = j.SMSAccessKey
	c.SMSSecretKey = j.SMSSecretKey
	c.SMSAccount = j.SMSAccount
	c.SMSSign = j.SMSSign
	c.SMSTemplateID = j.SMSTemplateID
	c.SMSScene = j.SMSScene
	c.SMSCodeExpire = j.SMSCodeExpire.Duration
	c.SMSTryCount = j.SMSTryCount
	c.SMSCodeType = j.SMSCodeType
	c.SMSStaticCode = j.SMSStaticCode
	c.S3AccessKey = j.S3AccessKey
	c.S3SecretKey = j.S3SecretKey
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.UploadURLTTL = j.UploadURLTTL.Duration
	c.OTelEndpoint = j.OTelEndpoint
}
